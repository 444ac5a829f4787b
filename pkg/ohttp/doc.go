// Package ohttp implements Oblivious HTTP (RFC 9458) for routing backend
// calls through a relay so the backend cannot link requests to clients.
//
// A Client encapsulates an inner HTTP request as Binary HTTP (RFC 9292)
// sealed with HPKE to the gateway's key configuration, and opens the sealed
// response. Transport plugs a Client into an http.Client. Gateway is the
// server side: it decapsulates requests, hands them to an http.Handler and
// seals the responses.
//
// Only KEM X25519-HKDF-SHA256 with KDF HKDF-SHA256 is supported. Responses
// use the non-chunked format, so a streamed inner response is delivered in
// one piece when the outer response completes.
package ohttp
