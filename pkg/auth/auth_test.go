package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// voter returns a fixed result and counts calls.
type voter struct {
	result Result
	calls  int
}

func (v *voter) Authenticate(_ context.Context, _ *http.Request) Result {
	v.calls++
	return v.result
}

func TestChain(t *testing.T) {
	errBad := errors.New("bad token")
	alice := Identity{Subject: "alice", ServiceTier: "gold"}

	tests := []struct {
		name     string
		chain    func(last *voter) *Chain
		wantVote Vote
		wantSub  string
		wantErr  error
		lastRuns bool
	}{
		{
			name: "first yes stops",
			chain: func(last *voter) *Chain {
				return &Chain{Authenticators: []Authenticator{&voter{result: Accept(alice)}, last}}
			},
			wantVote: Yes,
			wantSub:  "alice",
		},
		{
			name: "first no stops",
			chain: func(last *voter) *Chain {
				return &Chain{
					Authenticators: []Authenticator{&voter{result: Reject(errBad)}, last},
					Fallback:       &Identity{Subject: Anonymous},
				}
			},
			wantVote: No,
			wantErr:  errBad,
		},
		{
			name: "abstain then yes",
			chain: func(last *voter) *Chain {
				last.result = Accept(alice)
				return &Chain{Authenticators: []Authenticator{&voter{}, last}}
			},
			wantVote: Yes,
			wantSub:  "alice",
			lastRuns: true,
		},
		{
			name: "all abstain without fallback",
			chain: func(last *voter) *Chain {
				return &Chain{Authenticators: []Authenticator{&voter{}, last}}
			},
			wantVote: No,
			wantErr:  ErrUnauthenticated,
			lastRuns: true,
		},
		{
			name: "all abstain with fallback",
			chain: func(last *voter) *Chain {
				return &Chain{
					Authenticators: []Authenticator{&voter{}, last},
					Fallback:       &Identity{Subject: "guest", ServiceTier: "free"},
				}
			},
			wantVote: Yes,
			wantSub:  "guest",
			lastRuns: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := &voter{}
			res := tt.chain(last).Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))

			if res.Vote != tt.wantVote {
				t.Fatalf("vote = %s, want %s", res.Vote, tt.wantVote)
			}
			if tt.wantSub != "" && (res.Identity == nil || res.Identity.Subject != tt.wantSub) {
				t.Errorf("identity = %+v, want subject %q", res.Identity, tt.wantSub)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("err = %v, want %v", res.Err, tt.wantErr)
			}
			if ran := last.calls > 0; ran != tt.lastRuns {
				t.Errorf("last authenticator ran = %v, want %v", ran, tt.lastRuns)
			}
		})
	}
}

func TestChain_FallbackIsCopied(t *testing.T) {
	chain := Open()
	res := chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))
	res.Identity.Subject = "mallory"

	if chain.Fallback.Subject != Anonymous {
		t.Errorf("fallback mutated to %q", chain.Fallback.Subject)
	}
}

func TestSubject(t *testing.T) {
	ctx := context.Background()
	if got := Subject(ctx); got != Anonymous {
		t.Errorf("Subject(empty) = %q, want %q", got, Anonymous)
	}
	if IdentityFromContext(ctx) != nil {
		t.Error("expected nil identity from empty context")
	}

	if got := Subject(WithIdentity(ctx, &Identity{})); got != Anonymous {
		t.Errorf("Subject(no subject) = %q, want %q", got, Anonymous)
	}

	ctx = WithIdentity(ctx, &Identity{Subject: "alice"})
	if got := Subject(ctx); got != "alice" {
		t.Errorf("Subject = %q, want alice", got)
	}
	if id := IdentityFromContext(ctx); id == nil || id.Subject != "alice" {
		t.Errorf("IdentityFromContext = %+v", id)
	}
}
