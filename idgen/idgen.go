// Package idgen provides pluggable ID generation for quiz sessions and
// diagnostics.
//
// Constructors that mint identifiers accept a Generator, so the ID strategy
// is a startup-time decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short and URL-safe; used for trace IDs where a UUID is too verbose.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so session listings order naturally.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID
// (e.g. "qs_" for sessions, "dg_" for diagnostics).
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Session is the generator used for quiz session IDs.
var Session Generator = Prefixed("qs_", Default)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string (optionally prefixed, e.g. "qs_...") and
// returns it unchanged or an error.
func Parse(s string) (string, error) {
	raw := s
	if i := len(s) - 36; i > 0 {
		raw = s[i:]
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid UUID %q: %w", s, err)
	}
	return s, nil
}
