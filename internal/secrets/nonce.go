package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
)

// NonceSize is the width of a NaCl box nonce.
const NonceSize = 24

// Nonce is a per-message random value. KeePassXC binds each reply to the
// request by answering with the request nonce incremented by one.
type Nonce [NonceSize]byte

// NewNonce reads a fresh nonce from the system CSPRNG.
func NewNonce() (Nonce, error) {
	var n Nonce
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return n, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return n, nil
}

// ParseNonce decodes a standard base64 nonce.
func ParseNonce(s string) (Nonce, error) {
	var n Nonce
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("failed to decode nonce: %w", err)
	}
	if len(raw) != NonceSize {
		return n, fmt.Errorf("invalid nonce length: expected %d bytes, got %d bytes", NonceSize, len(raw))
	}
	copy(n[:], raw)
	return n, nil
}

// Increment returns n plus one, reading n as a little-endian integer.
// This matches libsodium's sodium_increment.
func (n Nonce) Increment() Nonce {
	out := n
	carry := uint16(1)
	for i := range out {
		carry += uint16(out[i])
		out[i] = byte(carry)
		carry >>= 8
	}
	return out
}

// Equal compares two nonces in constant time.
func (n Nonce) Equal(other Nonce) bool {
	return subtle.ConstantTimeCompare(n[:], other[:]) == 1
}

// String returns the nonce as standard base64.
func (n Nonce) String() string {
	return base64.StdEncoding.EncodeToString(n[:])
}

// NewClientID returns a random client identifier for one session.
func NewClientID() (string, error) {
	n, err := NewNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate client id: %w", err)
	}
	return n.String(), nil
}
