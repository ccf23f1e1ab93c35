//go:build !nohwtoken

package configs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// hmacSHA1Size is the length of an HMAC-SHA1 challenge-response answer.
const hmacSHA1Size = 20

// YubiKey talks to a hardware token through the yubikey-personalization
// tools (ykinfo, ykchalresp), falling back to ykman.
type YubiKey struct {
	// OnWait is called before a step that may block on a touch, and OnDone
	// after it.
	OnWait func()
	OnDone func()

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewYubiKey() *YubiKey {
	return &YubiKey{run: runCommand}
}

// Serial returns the serial number of the first connected token.
func (y *YubiKey) Serial(ctx context.Context) (uint32, error) {
	out, err := y.run(ctx, "ykinfo", "-s", "-q")
	if err != nil {
		var fallbackErr error
		out, fallbackErr = y.run(ctx, "ykman", "list", "--serials")
		if fallbackErr != nil {
			return 0, errors.Join(err, fallbackErr)
		}
	}

	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	serial, err := strconv.ParseUint(strings.TrimSpace(string(line)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected serial %q: %w", line, err)
	}
	return uint32(serial), nil
}

// ChallengeResponse sends challenge to slot and returns the 20-byte
// HMAC-SHA1 response.
func (y *YubiKey) ChallengeResponse(ctx context.Context, slot uint8, challenge []byte) ([]byte, error) {
	if slot != 1 && slot != 2 {
		return nil, fmt.Errorf("invalid slot %d", slot)
	}
	challengeHex := hex.EncodeToString(challenge)

	if y.OnWait != nil {
		y.OnWait()
	}
	if y.OnDone != nil {
		defer y.OnDone()
	}

	out, err := y.run(ctx, "ykchalresp", "-"+strconv.Itoa(int(slot)), "-x", challengeHex)
	if err != nil {
		var fallbackErr error
		out, fallbackErr = y.run(ctx, "ykman", "otp", "calculate", strconv.Itoa(int(slot)), challengeHex)
		if fallbackErr != nil {
			return nil, errors.Join(err, fallbackErr)
		}
	}

	resp, err := hex.DecodeString(lastLine(out))
	if err != nil {
		return nil, fmt.Errorf("unexpected response: %w", err)
	}
	if len(resp) != hmacSHA1Size {
		return nil, fmt.Errorf("unexpected response length %d", len(resp))
	}
	return resp, nil
}

func lastLine(out []byte) string {
	var last string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	return last
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
