package secrets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

func newChannelPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()

	client, err := GenerateKeyPair()
	require.NoError(t, err)
	server, err := GenerateKeyPair()
	require.NoError(t, err)

	c, err := Establish(client, server.Public)
	require.NoError(t, err)
	s, err := Establish(server, client.Public)
	require.NoError(t, err)
	return c, s
}

func TestChannelRoundTrip(t *testing.T) {
	c, s := newChannelPair(t)

	ct, nonce, err := c.Encrypt([]byte(`{"action":"get-logins"}`))
	require.NoError(t, err)

	plain, err := s.Decrypt(ct, nonce)
	require.NoError(t, err)
	require.Equal(t, `{"action":"get-logins"}`, string(plain))
}

func TestChannelFreshNonces(t *testing.T) {
	c, _ := newChannelPair(t)

	_, first, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	_, second, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	require.False(t, first.Equal(second))
}

func TestChannelRejectsTamperedCiphertext(t *testing.T) {
	c, s := newChannelPair(t)

	ct, nonce, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	// flip a character inside the base64 body
	tampered := []byte(ct)
	if tampered[4] == 'A' {
		tampered[4] = 'B'
	} else {
		tampered[4] = 'A'
	}

	_, err = s.Decrypt(string(tampered), nonce)
	require.ErrorIs(t, err, kerrors.ErrDecryptionFailed)
}

func TestChannelRejectsWrongKey(t *testing.T) {
	c, _ := newChannelPair(t)
	_, other := newChannelPair(t)

	ct, nonce, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = other.Decrypt(ct, nonce)
	require.ErrorIs(t, err, kerrors.ErrDecryptionFailed)
}

func TestDecryptReply(t *testing.T) {
	c, s := newChannelPair(t)

	request, err := NewNonce()
	require.NoError(t, err)

	reply := request.Increment()
	sealed := s.Seal([]byte(`{"success":"true"}`), reply)

	plain, err := c.DecryptReply(sealed, reply, request)
	require.NoError(t, err)
	require.Equal(t, `{"success":"true"}`, string(plain))
}

func TestDecryptReplyNonceMismatch(t *testing.T) {
	c, s := newChannelPair(t)

	request, err := NewNonce()
	require.NoError(t, err)

	// a correctly sealed message echoing the request nonce is still refused
	sealed := s.Seal([]byte(`{"success":"true"}`), request)

	_, err = c.DecryptReply(sealed, request, request)
	require.True(t, errors.Is(err, kerrors.ErrNonceMismatch))
	require.True(t, errors.Is(err, kerrors.ErrDecryptionFailed))
}

func TestChannelClose(t *testing.T) {
	c, _ := newChannelPair(t)
	c.Close()
	require.Equal(t, [KeySize]byte{}, c.shared)
}
