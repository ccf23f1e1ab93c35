//go:build !nohwtoken

package configs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTools struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call)
	if out, ok := f.outputs[call]; ok {
		return []byte(out), nil
	}
	return nil, errors.New(name + ": executable file not found in $PATH")
}

func TestYubiKeySerial(t *testing.T) {
	tools := &fakeTools{outputs: map[string]string{"ykinfo -s -q": "12345678\n"}}
	y := &YubiKey{run: tools.run}

	serial, err := y.Serial(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(12345678), serial)
}

func TestYubiKeySerialFallsBackToYkman(t *testing.T) {
	tools := &fakeTools{outputs: map[string]string{"ykman list --serials": "87654321\n11111111\n"}}
	y := &YubiKey{run: tools.run}

	serial, err := y.Serial(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(87654321), serial)
	require.Equal(t, []string{"ykinfo -s -q", "ykman list --serials"}, tools.calls)
}

func TestYubiKeyChallengeResponse(t *testing.T) {
	tools := &fakeTools{outputs: map[string]string{
		"ykchalresp -2 -x 616263": "a9993e364706816aba3e25717850c26c9cd0d89d\n",
	}}
	var waited, done bool
	y := &YubiKey{
		run:    tools.run,
		OnWait: func() { waited = true },
		OnDone: func() { done = true },
	}

	resp, err := y.ChallengeResponse(context.Background(), 2, []byte("abc"))
	require.NoError(t, err)
	require.Len(t, resp, 20)
	require.True(t, waited)
	require.True(t, done)
}

func TestYubiKeyChallengeResponseFallsBackToYkman(t *testing.T) {
	tools := &fakeTools{outputs: map[string]string{
		"ykman otp calculate 1 616263": "Touch your YubiKey...\na9993e364706816aba3e25717850c26c9cd0d89d\n",
	}}
	y := &YubiKey{run: tools.run}

	resp, err := y.ChallengeResponse(context.Background(), 1, []byte("abc"))
	require.NoError(t, err)
	require.Len(t, resp, 20)
}

func TestYubiKeyChallengeResponseErrors(t *testing.T) {
	y := &YubiKey{run: (&fakeTools{}).run}

	_, err := y.ChallengeResponse(context.Background(), 3, []byte("abc"))
	require.ErrorContains(t, err, "invalid slot")

	_, err = y.ChallengeResponse(context.Background(), 2, []byte("abc"))
	require.ErrorContains(t, err, "ykchalresp")
	require.ErrorContains(t, err, "ykman")

	short := &fakeTools{outputs: map[string]string{"ykchalresp -2 -x 616263": "abcd\n"}}
	y = &YubiKey{run: short.run}
	_, err = y.ChallengeResponse(context.Background(), 2, []byte("abc"))
	require.ErrorContains(t, err, "unexpected response length")
}
