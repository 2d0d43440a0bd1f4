package core

import (
	"crypto/rsa"
	"time"
)

// SigningKey is one public key from the identity provider's published key
// set. It is owned by the key-set cache and never mutated after fetch; a
// refresh replaces the whole set.
type SigningKey struct {
	KID       string
	Algorithm string
	PublicKey *rsa.PublicKey
}

// KeySet is the fetched key material plus the time it was fetched. The
// cache swaps the entire value atomically, so a KeySet observed by a
// reader is always internally consistent.
type KeySet struct {
	Keys      []SigningKey
	FetchedAt time.Time
}

// Lookup returns the key with the given kid, if present.
func (s KeySet) Lookup(kid string) (SigningKey, bool) {
	for _, k := range s.Keys {
		if k.KID == kid {
			return k, true
		}
	}
	return SigningKey{}, false
}

// Age reports how long ago the set was fetched.
func (s KeySet) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
