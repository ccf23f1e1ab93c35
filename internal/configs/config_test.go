package configs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// fakeToken answers challenges with HMAC-SHA1 under a fixed secret, like a
// programmed hardware token.
type fakeToken struct {
	serial    uint32
	serialErr error
	secret    []byte
	calls     int
}

func (f *fakeToken) Serial(context.Context) (uint32, error) {
	if f.serialErr != nil {
		return 0, f.serialErr
	}
	return f.serial, nil
}

func (f *fakeToken) ChallengeResponse(_ context.Context, _ uint8, challenge []byte) ([]byte, error) {
	f.calls++
	mac := hmac.New(sha1.New, f.secret)
	mac.Write(challenge)
	return mac.Sum(nil), nil
}

func newTestDatabase(t *testing.T, id string) Database {
	t.Helper()
	kp, err := secrets.GenerateKeyPair()
	require.NoError(t, err)
	return NewDatabase(id, kp, "Git", "0123456789abcdef")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.ErrorIs(t, err, kerrors.ErrConfigurationMissing)
}

func TestLoadOrNewMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadOrNew(path)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.DatabaseCount())
	require.Equal(t, path, cfg.Path())
}

func TestSaveAndLoadPlaintext(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadOrNew(path)
	require.NoError(t, err)

	db := newTestDatabase(t, "work")
	require.NoError(t, cfg.AddDatabase(ctx, db, false))
	uid := uint32(1000)
	require.NoError(t, cfg.AddCaller(ctx, Caller{Path: "/usr/bin/git", UID: &uid}, false))
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	dbs, err := loaded.AllDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, []Database{db}, dbs)

	callers, err := loaded.AllCallers(ctx)
	require.NoError(t, err)
	require.Len(t, callers, 1)
	require.Equal(t, uint32(1000), *callers[0].UID)
	require.Nil(t, callers[0].GID)

	kp, err := secrets.KeyPairFromPrivate(dbs[0].Key)
	require.NoError(t, err)
	require.Equal(t, db.PublicKey, kp.PublicBase64())
}

func TestEncryptedRoundTripKeyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	enc, err := ParseEncryption(ctx, "key-file:"+filepath.Join(dir, "at-rest.key"), nil, logger.Logger{})
	require.NoError(t, err)

	cfg, err := LoadOrNew(path)
	require.NoError(t, err)
	require.NoError(t, cfg.SetEncryption(enc))

	db := newTestDatabase(t, "work")
	require.NoError(t, cfg.AddDatabase(ctx, db, true))
	require.NoError(t, cfg.Save())
	cfg.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), db.Key)
	require.Contains(t, string(raw), "encrypted_databases")

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()
	require.Empty(t, loaded.Databases)

	dbs, err := loaded.AllDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, []Database{db}, dbs)
}

func TestEncryptedRoundTripChallengeResponse(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.toml")
	token := &fakeToken{serial: 1234567, secret: []byte("0123456789abcdefghij")}

	enc, err := ParseEncryption(ctx, "challenge-response", token, logger.Logger{})
	require.NoError(t, err)
	require.Equal(t, uint32(1234567), *enc.Serial)

	cfg, err := LoadOrNew(path)
	require.NoError(t, err)
	cfg.SetChallengeResponder(token)
	require.NoError(t, cfg.SetEncryption(enc))

	first := newTestDatabase(t, "work")
	second := newTestDatabase(t, "home")
	require.NoError(t, cfg.AddDatabase(ctx, first, true))
	require.NoError(t, cfg.AddDatabase(ctx, second, true))
	require.NoError(t, cfg.AddCaller(ctx, Caller{Path: "/usr/bin/git"}, true))
	require.NoError(t, cfg.Save())
	require.Equal(t, 1, token.calls)
	cfg.Close()

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()
	loaded.SetChallengeResponder(token)

	dbs, err := loaded.AllDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, []Database{first, second}, dbs)

	callers, err := loaded.AllCallers(ctx)
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/git", callers[0].Path)

	// one more derivation for the new process, none for the second read
	require.Equal(t, 2, token.calls)
}

func TestCloseForgetsKey(t *testing.T) {
	ctx := context.Background()
	token := &fakeToken{serial: 1, secret: []byte("secret")}

	enc, err := ParseEncryption(ctx, "challenge-response:1", token, logger.Logger{})
	require.NoError(t, err)
	require.Equal(t, uint8(1), enc.Slot)

	cfg := &Config{}
	cfg.SetChallengeResponder(token)
	require.NoError(t, cfg.SetEncryption(enc))
	require.NoError(t, cfg.AddDatabase(ctx, newTestDatabase(t, "work"), true))
	require.Equal(t, 1, token.calls)

	cfg.Close()
	_, err = cfg.AllDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, token.calls)
	cfg.Close()
}

func TestEncryptedWithoutProfile(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{EncryptedDatabases: []EncryptedRecord{{Data: "AAAA", Nonce: "AAAA"}}}

	_, err := cfg.AllDatabases(ctx)
	require.ErrorIs(t, err, kerrors.ErrEncryptionKeyUnavailable)

	err = cfg.AddDatabase(ctx, newTestDatabase(t, "work"), true)
	require.ErrorIs(t, err, kerrors.ErrEncryptionKeyUnavailable)
}

func TestEncryptedWithWrongKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	enc, err := ParseEncryption(ctx, "key-file:"+filepath.Join(dir, "first.key"), nil, logger.Logger{})
	require.NoError(t, err)
	cfg := &Config{}
	require.NoError(t, cfg.SetEncryption(enc))
	require.NoError(t, cfg.AddDatabase(ctx, newTestDatabase(t, "work"), true))
	cfg.Close()

	other, err := ParseEncryption(ctx, "key-file:"+filepath.Join(dir, "second.key"), nil, logger.Logger{})
	require.NoError(t, err)
	cfg.Encryption = other

	_, err = cfg.AllDatabases(ctx)
	require.ErrorIs(t, err, kerrors.ErrDecryptionFailed)
}

func TestSetEncryptionTwice(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	enc, err := ParseEncryption(ctx, "key-file:"+filepath.Join(dir, "a.key"), nil, logger.Logger{})
	require.NoError(t, err)
	cfg := &Config{}
	require.NoError(t, cfg.SetEncryption(enc))

	err = cfg.SetEncryption(enc)
	require.ErrorIs(t, err, kerrors.ErrEncryptionProfileExists)
}

func TestEncryptAllDecryptAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := &Config{}
	db := newTestDatabase(t, "work")
	require.NoError(t, cfg.AddDatabase(ctx, db, false))
	require.NoError(t, cfg.AddCaller(ctx, Caller{Path: "/usr/bin/git"}, false))

	enc, err := ParseEncryption(ctx, "key-file:"+filepath.Join(dir, "a.key"), nil, logger.Logger{})
	require.NoError(t, err)
	require.NoError(t, cfg.SetEncryption(enc))

	n, err := cfg.EncryptAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Empty(t, cfg.Databases)
	require.Empty(t, cfg.Callers)
	require.Len(t, cfg.EncryptedDatabases, 1)
	require.Len(t, cfg.EncryptedCallers, 1)

	n, err = cfg.DecryptAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Nil(t, cfg.Encryption)
	require.Equal(t, []Database{db}, cfg.Databases)
	require.Empty(t, cfg.EncryptedDatabases)
	require.Equal(t, 2, cfg.DatabaseCount()+cfg.CallerCount())
}

func TestParseEncryption(t *testing.T) {
	ctx := context.Background()
	token := &fakeToken{serial: 42, secret: []byte("s")}

	enc, err := ParseEncryption(ctx, "challenge-response", token, logger.Logger{})
	require.NoError(t, err)
	require.Equal(t, KindChallengeResponse, enc.Kind)
	require.Equal(t, uint8(2), enc.Slot)
	require.Len(t, enc.Challenge, 64)
	require.Empty(t, strings.Trim(enc.Challenge, challengeChars))

	enc, err = ParseEncryption(ctx, "challenge-response:1:fixed", token, logger.Logger{})
	require.NoError(t, err)
	require.Equal(t, uint8(1), enc.Slot)
	require.Equal(t, "fixed", enc.Challenge)

	invalid := []string{
		"challenge-response:3",
		"challenge-response:x",
		"challenge-response:2:" + strings.Repeat("a", 65),
		"key-file",
		"key-file:",
		"password",
		"",
	}
	for _, profile := range invalid {
		_, err := ParseEncryption(ctx, profile, token, logger.Logger{})
		require.ErrorIs(t, err, kerrors.ErrInvalidEncryptionProfile, profile)
	}

	_, err = ParseEncryption(ctx, "challenge-response", nil, logger.Logger{})
	require.ErrorIs(t, err, kerrors.ErrUnsupported)
}

func TestParseEncryptionWithoutSerial(t *testing.T) {
	ctx := context.Background()
	token := &fakeToken{serialErr: errors.New("serial api visibility disabled"), secret: []byte("s")}
	var out bytes.Buffer

	enc, err := ParseEncryption(ctx, "challenge-response", token, logger.Logger{Out: &out})
	require.NoError(t, err)
	require.Equal(t, KindChallengeResponse, enc.Kind)
	require.Nil(t, enc.Serial)
	require.Contains(t, out.String(), "serial api visibility disabled")

	cfg := &Config{}
	cfg.SetLogger(logger.Logger{Out: &out})
	cfg.SetChallengeResponder(token)
	require.NoError(t, cfg.SetEncryption(enc))
	db := newTestDatabase(t, "work")
	require.NoError(t, cfg.AddDatabase(ctx, db, true))
	defer cfg.Close()

	dbs, err := cfg.AllDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, []Database{db}, dbs)
	require.Equal(t, 1, token.calls)
}

func TestParseEncryptionRejectsBadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	require.NoError(t, os.WriteFile(path, []byte("c2hvcnQ=\n"), 0600))

	_, err := ParseEncryption(context.Background(), "key-file:"+path, nil, logger.Logger{})
	require.ErrorIs(t, err, kerrors.ErrInvalidEncryptionProfile)
}

func TestCallerMatches(t *testing.T) {
	uid, gid := uint32(1000), uint32(100)

	require.True(t, Caller{Path: "/usr/bin/git"}.Matches("/usr/bin/git", 0, 0))
	require.False(t, Caller{Path: "/usr/bin/git"}.Matches("/usr/bin/ssh", 0, 0))
	require.True(t, Caller{Path: "/usr/bin/git", UID: &uid, GID: &gid}.Matches("/usr/bin/git", 1000, 100))
	require.False(t, Caller{Path: "/usr/bin/git", UID: &uid}.Matches("/usr/bin/git", 1001, 100))
	require.False(t, Caller{Path: "/usr/bin/git", GID: &gid}.Matches("/usr/bin/git", 1000, 0))
}
