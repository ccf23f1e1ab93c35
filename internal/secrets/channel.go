package secrets

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

// Channel performs authenticated encryption between the session key pair and
// the KeePassXC public key. It knows nothing about persisted identities.
type Channel struct {
	shared [KeySize]byte
}

// Establish precomputes the shared key for local and remote.
func Establish(local *KeyPair, remote *[KeySize]byte) (*Channel, error) {
	if local == nil || local.Private == nil {
		return nil, fmt.Errorf("missing local key pair")
	}
	if remote == nil {
		return nil, fmt.Errorf("missing remote public key")
	}
	c := &Channel{}
	box.Precompute(&c.shared, remote, local.Private)
	return c, nil
}

// Encrypt seals payload under a fresh random nonce and returns the base64
// ciphertext together with that nonce.
func (c *Channel) Encrypt(payload []byte) (string, Nonce, error) {
	nonce, err := NewNonce()
	if err != nil {
		return "", nonce, err
	}
	return c.Seal(payload, nonce), nonce, nil
}

// Seal encrypts payload under a caller chosen nonce. Callers must never reuse
// a nonce; replies use the increment of the request nonce.
func (c *Channel) Seal(payload []byte, nonce Nonce) string {
	n := [NonceSize]byte(nonce)
	sealed := box.SealAfterPrecomputation(nil, payload, &n, &c.shared)
	return base64.StdEncoding.EncodeToString(sealed)
}

// Decrypt opens a base64 ciphertext sealed under nonce. Any authentication
// failure is ErrDecryptionFailed.
func (c *Channel) Decrypt(ciphertext string, nonce Nonce) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not valid base64: %v", kerrors.ErrDecryptionFailed, err)
	}
	n := [NonceSize]byte(nonce)
	plain, ok := box.OpenAfterPrecomputation(nil, sealed, &n, &c.shared)
	if !ok {
		return nil, fmt.Errorf("%w: message authentication failed", kerrors.ErrDecryptionFailed)
	}
	return plain, nil
}

// DecryptReply checks that reply is bound to request before opening the
// ciphertext.
func (c *Channel) DecryptReply(ciphertext string, reply, request Nonce) ([]byte, error) {
	if err := VerifyReplyNonce(reply, request); err != nil {
		return nil, err
	}
	return c.Decrypt(ciphertext, reply)
}

// VerifyReplyNonce reports whether reply is request incremented by one.
func VerifyReplyNonce(reply, request Nonce) error {
	if !reply.Equal(request.Increment()) {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, kerrors.ErrNonceMismatch)
	}
	return nil
}

// Close wipes the shared key.
func (c *Channel) Close() {
	Wipe(c.shared[:])
}
