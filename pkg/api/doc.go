// Package api defines the core types shared by the confwhisper adapter,
// its gateway, and its CLI.
//
// The package performs no I/O. It provides:
//   - [Message] and [ContentBlock]: conversation input in the host
//     application's block format (text, image, tool_use, tool_result)
//   - [StreamEvent]: the normalized event emitted while a completion streams
//     (text, reasoning, usage)
//   - [ModelInfo]: per-model metadata such as token limits, pricing, and
//     formatting flags
//   - [APIError]: structured error with type, message, and the HTTP details
//     the retry policy needs to classify a failure
package api
