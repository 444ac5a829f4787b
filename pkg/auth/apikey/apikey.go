// Package apikey authenticates gateway callers by static API keys, presented
// either as a bearer token or in the X-API-Key header. Keys are stored as
// SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/confwhisper/pkg/auth"
)

// HeaderName is the alternative header carrying a raw key.
const HeaderName = "X-API-Key"

// Key configures one accepted key.
type Key struct {
	Key         string
	Subject     string
	ServiceTier string
}

type entry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates keys against a fixed set.
type Authenticator struct {
	entries []entry
}

// New hashes keys immediately; plaintext keys are not retained. Entries with
// an empty key are ignored. A missing subject defaults to "apikey-<n>".
func New(keys []Key) *Authenticator {
	a := &Authenticator{}
	for i, k := range keys {
		if k.Key == "" {
			continue
		}
		id := auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier}
		if id.Subject == "" {
			id.Subject = "apikey-" + strconv.Itoa(i)
		}
		a.entries = append(a.entries, entry{hash: sha256.Sum256([]byte(k.Key)), identity: id})
	}
	return a
}

// Authenticate abstains when no key is presented, votes No for unknown keys.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, present := credential(r)
	if !present {
		return auth.Result{}
	}
	if token == "" {
		return auth.Reject(auth.ErrUnauthenticated)
	}

	sum := sha256.Sum256([]byte(token))
	match := -1
	// Every entry is compared so timing does not reveal the match position.
	for i := range a.entries {
		if subtle.ConstantTimeCompare(sum[:], a.entries[i].hash[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return auth.Reject(auth.ErrUnauthenticated)
	}

	return auth.Accept(a.entries[match].identity)
}

func credential(r *http.Request) (string, bool) {
	if v := r.Header.Get(HeaderName); v != "" {
		return strings.TrimSpace(v), true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(token), true
}

