// Package transport defines the handler contract and middleware chain of
// the confwhisper gateway.
//
// The gateway accepts a system prompt and a conversation, streams the
// normalized events of the backend completion, and accounts the reported
// token usage. This package is protocol-agnostic: the HTTP/SSE binding
// lives in pkg/transport/http.
//
// # Handler Interfaces
//
//   - MessageCreator streams one completion into an EventWriter.
//   - EventWriter abstracts the outgoing event stream so the handler does
//     not know whether it writes SSE frames or something else.
//
// # Middleware
//
// The middleware chain wraps MessageCreator with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
package transport
