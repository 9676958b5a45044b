// Package sha256 provides SHA-256 hashing utilities for advisory identity.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher hashes byte payloads with SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Join hashes a sequence of already-canonicalized fields separated by an
// unambiguous delimiter so field boundaries cannot collide.
func Join(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}
