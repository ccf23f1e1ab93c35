package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the width of Curve25519 public and private keys.
const KeySize = 32

// KeyPair is a Curve25519 key pair usable with NaCl box.
type KeyPair struct {
	Public  *[KeySize]byte
	Private *[KeySize]byte
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// KeyPairFromPrivate rebuilds a key pair from a base64 encoded private key.
func KeyPairFromPrivate(encoded string) (*KeyPair, error) {
	priv, err := DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	pub := new([KeySize]byte)
	curve25519.ScalarBaseMult(pub, priv)
	return &KeyPair{Public: pub, Private: priv}, nil
}

// PublicBase64 returns the public key in the encoding KeePassXC expects.
func (k *KeyPair) PublicBase64() string {
	return EncodeKey(k.Public)
}

// PrivateBase64 returns the private key as standard base64.
func (k *KeyPair) PrivateBase64() string {
	return EncodeKey(k.Private)
}

// Wipe zeroes the private key. The key pair is unusable afterwards.
func (k *KeyPair) Wipe() {
	if k == nil || k.Private == nil {
		return
	}
	Wipe(k.Private[:])
}

// EncodeKey returns k as standard base64.
func EncodeKey(k *[KeySize]byte) string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// DecodeKey parses a standard base64 key of exactly KeySize bytes.
func DecodeKey(s string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	defer Wipe(raw)
	if len(raw) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d bytes", KeySize, len(raw))
	}
	k := new([KeySize]byte)
	copy(k[:], raw)
	return k, nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
