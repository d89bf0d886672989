package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrSharedSecretMismatch indicates a trigger call presented the wrong secret.
var ErrSharedSecretMismatch = errors.New("auth: shared secret mismatch")

// SharedSecretGuard authenticates the periodic trigger and other internal
// endpoints with a bearer shared secret compared in constant time.
type SharedSecretGuard struct {
	secret []byte
}

// NewSharedSecretGuard constructs a guard for the provided secret.
func NewSharedSecretGuard(secret string) (*SharedSecretGuard, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("auth: shared secret required")
	}
	return &SharedSecretGuard{secret: []byte(trimmed)}, nil
}

// Verify checks the presented bearer credential against the shared secret.
func (g *SharedSecretGuard) Verify(presented string) error {
	if subtle.ConstantTimeCompare(g.secret, []byte(strings.TrimSpace(presented))) != 1 {
		return ErrSharedSecretMismatch
	}
	return nil
}
