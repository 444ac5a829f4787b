// Package gateway serves chat completions to authenticated clients. It
// streams the events of a provider.Handler into a transport.EventWriter and
// books the reported token usage to the caller's subject.
package gateway
