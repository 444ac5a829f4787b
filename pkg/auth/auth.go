package auth

import (
	"context"
	"errors"
	"net/http"
)

// Vote is an authenticator's verdict on a request. The zero value abstains.
type Vote int

const (
	// Abstain passes the request to the next authenticator, typically
	// because the credentials are not of a kind it understands.
	Abstain Vote = iota

	// Yes accepts the request. Result.Identity is set.
	Yes

	// No rejects the request. Result.Err says why.
	No
)

func (v Vote) String() string {
	switch v {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Vote     Vote
	Identity *Identity
	Err      error
}

// Accept returns a Yes result for id.
func Accept(id Identity) Result {
	return Result{Vote: Yes, Identity: &id}
}

// Reject returns a No result carrying err.
func Reject(err error) Result {
	return Result{Vote: No, Err: err}
}

// Authenticator inspects request credentials and votes on them.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain asks its authenticators in order and returns the first Yes or No.
type Chain struct {
	Authenticators []Authenticator

	// Fallback is admitted when every authenticator abstains. Nil rejects
	// such requests.
	Fallback *Identity
}

// Open returns a chain without authenticators that admits every caller as
// the anonymous subject.
func Open() *Chain {
	return &Chain{Fallback: &Identity{Subject: Anonymous}}
}

// Authenticate runs the chain against r.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Vote != Abstain {
			return res
		}
	}
	if c.Fallback != nil {
		return Accept(*c.Fallback)
	}
	return Reject(ErrUnauthenticated)
}
