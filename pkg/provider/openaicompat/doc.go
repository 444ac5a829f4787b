// Package openaicompat provides the wire types and HTTP client for
// OpenAI-compatible Chat Completions backends. It handles request
// serialization, SSE chunk decoding, classification of chunks into
// normalized stream events, and error mapping.
//
// Provider adapters build a ChatCompletionRequest, open a ChunkStream with
// the Client, and translate each chunk with ChunkEvents.
package openaicompat
