package configs

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// EncryptionKind selects how the at-rest key is obtained.
type EncryptionKind string

const (
	// KindChallengeResponse derives the key from an HMAC-SHA1 hardware token.
	KindChallengeResponse EncryptionKind = "challenge-response"
	// KindKeyFile reads the key from a file holding 32 base64 encoded bytes.
	KindKeyFile EncryptionKind = "key-file"
)

const (
	defaultSlot     = 2
	challengeLength = 64
	challengeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Encryption is the profile protecting encrypted entries. Only the fields of
// its Kind are meaningful.
type Encryption struct {
	Kind EncryptionKind `toml:"kind"`

	Serial    *uint32 `toml:"serial,omitempty"`
	Slot      uint8   `toml:"slot,omitempty"`
	Challenge string  `toml:"challenge,omitempty"`

	KeyFile string `toml:"key_file,omitempty"`

	// derived is filled on first use and kept until Close.
	derived *memguard.LockedBuffer
}

func (e *Encryption) String() string {
	switch e.Kind {
	case KindChallengeResponse:
		if e.Serial != nil {
			return fmt.Sprintf("%s (slot %d, token %d)", e.Kind, e.Slot, *e.Serial)
		}
		return fmt.Sprintf("%s (slot %d)", e.Kind, e.Slot)
	case KindKeyFile:
		return fmt.Sprintf("%s (%s)", e.Kind, e.KeyFile)
	}
	return string(e.Kind)
}

// ChallengeResponder is a hardware token capable of HMAC-SHA1
// challenge-response.
type ChallengeResponder interface {
	Serial(ctx context.Context) (uint32, error)
	ChallengeResponse(ctx context.Context, slot uint8, challenge []byte) ([]byte, error)
}

// ParseEncryption builds a profile from its command line form:
//
//	challenge-response[:slot[:challenge]]
//	key-file:<path>
//
// A challenge-response profile records the serial of the token r talks to,
// when the token exposes one. A key file that does not exist yet is created
// with a random key.
func ParseEncryption(ctx context.Context, profile string, r ChallengeResponder, log logger.Logger) (*Encryption, error) {
	kind, rest, _ := strings.Cut(profile, ":")

	switch EncryptionKind(kind) {
	case KindChallengeResponse:
		return parseChallengeResponse(ctx, rest, r, log)
	case KindKeyFile:
		if rest == "" {
			return nil, fmt.Errorf("%w: key-file requires a path", kerrors.ErrInvalidEncryptionProfile)
		}
		path, err := filepath.Abs(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", kerrors.ErrInvalidEncryptionProfile, err)
		}
		if err := ensureKeyFile(path); err != nil {
			return nil, err
		}
		return &Encryption{Kind: KindKeyFile, KeyFile: path}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", kerrors.ErrInvalidEncryptionProfile, kind)
}

func parseChallengeResponse(ctx context.Context, args string, r ChallengeResponder, log logger.Logger) (*Encryption, error) {
	e := &Encryption{Kind: KindChallengeResponse, Slot: defaultSlot}

	slot, challenge, _ := strings.Cut(args, ":")
	if slot != "" {
		n, err := strconv.ParseUint(slot, 10, 8)
		if err != nil || (n != 1 && n != 2) {
			return nil, fmt.Errorf("%w: slot must be 1 or 2, got %q", kerrors.ErrInvalidEncryptionProfile, slot)
		}
		e.Slot = uint8(n)
	}

	if challenge == "" {
		generated, err := randomChallenge()
		if err != nil {
			return nil, err
		}
		challenge = generated
	}
	if len(challenge) > challengeLength {
		return nil, fmt.Errorf("%w: challenge longer than %d bytes", kerrors.ErrInvalidEncryptionProfile, challengeLength)
	}
	e.Challenge = challenge

	if r == nil {
		return nil, fmt.Errorf("%w: no hardware token support", kerrors.ErrUnsupported)
	}
	serial, err := r.Serial(ctx)
	if err != nil {
		log.WarnfAlways("failed to read hardware token serial, profile will not be bound to a token: %v", err)
		return e, nil
	}
	e.Serial = &serial
	return e, nil
}

func randomChallenge() (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(challengeChars)))
	for range challengeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate challenge: %w", err)
		}
		sb.WriteByte(challengeChars[n.Int64()])
	}
	return sb.String(), nil
}

// key returns the at-rest key, deriving it on first use. A token is asked at
// most once per process.
func (e *Encryption) key(ctx context.Context, r ChallengeResponder, log logger.Logger) (*memguard.LockedBuffer, error) {
	if e.derived != nil {
		return e.derived, nil
	}

	var raw []byte
	var err error
	switch e.Kind {
	case KindKeyFile:
		raw, err = readKeyFile(e.KeyFile)
	case KindChallengeResponse:
		log.Debugf("deriving at-rest key from hardware token slot %d", e.Slot)
		raw, err = e.challenge(ctx, r, log)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", kerrors.ErrInvalidEncryptionProfile, e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrEncryptionKeyUnavailable, err)
	}

	e.derived = memguard.NewBufferFromBytes(raw)
	return e.derived, nil
}

// challenge asks the token and pads the 20-byte response to the key size.
// A different serial only warns: a backup token may hold the same secret.
func (e *Encryption) challenge(ctx context.Context, r ChallengeResponder, log logger.Logger) ([]byte, error) {
	if r == nil {
		return nil, kerrors.ErrUnsupported
	}
	if e.Serial != nil {
		serial, err := r.Serial(ctx)
		switch {
		case err != nil:
			log.WarnfAlways("failed to read hardware token serial: %v", err)
		case serial != *e.Serial:
			log.WarnfAlways("encryption profile was created with token %d, using token %d", *e.Serial, serial)
		}
	}

	log.Infof("retrieving response, touch your hardware token if it blinks")
	resp, err := r.ChallengeResponse(ctx, e.Slot, []byte(e.Challenge))
	if err != nil {
		return nil, err
	}
	defer secrets.Wipe(resp)
	if len(resp) == 0 || len(resp) > chacha20poly1305.KeySize {
		return nil, fmt.Errorf("unexpected response length %d", len(resp))
	}

	key := make([]byte, chacha20poly1305.KeySize)
	copy(key, resp)
	return key, nil
}

func (e *Encryption) forget() {
	if e.derived != nil {
		e.derived.Destroy()
		e.derived = nil
	}
}

func readKeyFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer secrets.Wipe(content)

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(content)))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	if len(key) != chacha20poly1305.KeySize {
		secrets.Wipe(key)
		return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

func ensureKeyFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		key, err := readKeyFile(path)
		if err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrInvalidEncryptionProfile, err)
		}
		secrets.Wipe(key)
		return nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	defer secrets.Wipe(key)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return writeFile(path, []byte(encoded), 0600)
}

func sealRecord(key []byte, v any) (EncryptedRecord, error) {
	plain, err := cbor.Marshal(v)
	if err != nil {
		return EncryptedRecord{}, fmt.Errorf("failed to encode record: %w", err)
	}
	defer secrets.Wipe(plain)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return EncryptedRecord{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedRecord{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return EncryptedRecord{
		Data:  base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, nil)),
		Nonce: base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

func openRecord(key []byte, rec EncryptedRecord, v any) error {
	data, err := base64.StdEncoding.DecodeString(rec.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(rec.Nonce)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() {
		return fmt.Errorf("%w: invalid nonce length %d", kerrors.ErrDecryptionFailed, len(nonce))
	}
	plain, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, err)
	}
	defer secrets.Wipe(plain)

	if err := cbor.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: malformed record: %w", kerrors.ErrDecryptionFailed, err)
	}
	return nil
}
