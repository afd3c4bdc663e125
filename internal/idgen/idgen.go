// Package idgen generates locally-created record IDs that are
// byte-compatible with server-assigned IDs, so reconciliation on create is
// rarely needed (SPEC_FULL.md section 6, "Local ID format").
//
// No third-party ID-generation library in the example corpus (google/uuid,
// etc.) produces this exact 15-character lowercase-alphanumeric shape, so
// this is one of the few places the module falls back to the standard
// library: crypto/rand over a fixed alphabet is the simplest correct way
// to hit a non-standard format, and pulling in a dependency to wrap one
// rand.Read call would not pay for itself.
package idgen

import (
	"crypto/rand"
	"fmt"
)

const (
	idLength  = 15
	idAlpha   = "abcdefghijklmnopqrstuvwxyz0123456789"
	alphaSize = byte(len(idAlpha))
)

// New returns a cryptographically random 15-character id over [a-z0-9],
// matching the server's own ID format.
func New() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a supported platform does not fail; if it
		// somehow does, there is no safe fallback for an ID generator.
		panic(fmt.Sprintf("idgen: reading random bytes: %v", err))
	}

	out := make([]byte, idLength)
	for i, b := range buf {
		out[i] = idAlpha[b%alphaSize]
	}

	return string(out)
}

// Valid reports whether s has the shape of a server-compatible id: exactly
// 15 characters, all lowercase alphanumeric.
func Valid(s string) bool {
	if len(s) != idLength {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}

	return true
}
