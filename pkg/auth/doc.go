// Package auth decides who is calling the gateway.
//
// A Chain asks its authenticators in turn. Each votes Yes with an identity,
// No with a reason, or abstains when the request carries no credentials it
// understands. When all abstain the chain's fallback identity, if any, is
// admitted.
//
// Middleware runs the chain in front of the gateway routes, applies the
// optional per-tier rate limit and stores the identity in the request
// context, where Subject reads it for usage accounting and stream ownership.
package auth
