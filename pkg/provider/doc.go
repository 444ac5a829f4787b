// Package provider defines the interface between hosts and model backends.
//
// A Handler turns a system prompt and a conversation into a lazy sequence of
// api.StreamEvent values. Adapters live in subpackages (for example
// provider/confwhisper) and share the Chat Completions client in
// provider/openaicompat.
package provider
