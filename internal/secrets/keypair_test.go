package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPairFromPrivate(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	restored, err := KeyPairFromPrivate(kp.PrivateBase64())
	require.NoError(t, err)
	require.Equal(t, kp.PublicBase64(), restored.PublicBase64())
}

func TestDecodeKeyRejectsBadLength(t *testing.T) {
	_, err := DecodeKey("AAAA")
	require.ErrorContains(t, err, "invalid key length")
}

func TestKeyPairWipe(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	kp.Wipe()
	require.Equal(t, [KeySize]byte{}, *kp.Private)

	var nilPair *KeyPair
	nilPair.Wipe()
}
