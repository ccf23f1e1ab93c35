package configs

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
)

func writeLegacy(t *testing.T, path string, doc map[string]any) {
	t.Helper()
	raw, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))
}

func legacySeal(t *testing.T, key []byte, v any) EncryptedRecord {
	t.Helper()
	plain, err := json.Marshal(v)
	require.NoError(t, err)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := make([]byte, aead.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	return EncryptedRecord{
		Data:  base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, nil)),
		Nonce: base64.StdEncoding.EncodeToString(nonce),
	}
}

func TestIsLegacyConfig(t *testing.T) {
	dir := t.TempDir()

	legacy := filepath.Join(dir, AppName)
	writeLegacy(t, legacy, map[string]any{})
	require.True(t, IsLegacyConfig(legacy))

	require.False(t, IsLegacyConfig(dir))
	require.False(t, IsLegacyConfig(filepath.Join(dir, "missing")))

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0600))
	require.False(t, IsLegacyConfig(garbage))
}

func TestMigrateLegacyPlaintext(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, AppName)
	newPath := filepath.Join(legacyPath, "config.toml")

	db := newTestDatabase(t, "work")
	writeLegacy(t, legacyPath, map[string]any{
		"databases": []Database{db},
		"callers":   []Caller{{Path: "/usr/bin/git"}},
	})

	result, err := MigrateLegacy(ctx, legacyPath, newPath, nil, logger.Logger{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Databases)
	require.Equal(t, 1, result.Callers)
	require.Equal(t, 0, result.Resealed)
	require.FileExists(t, result.BackupPath)

	cfg, err := Load(newPath)
	require.NoError(t, err)
	require.Equal(t, []Database{db}, cfg.Databases)
	require.Equal(t, "/usr/bin/git", cfg.Callers[0].Path)
}

func TestMigrateLegacyEncrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, AppName)
	newPath := filepath.Join(legacyPath, "config.toml")

	token := &fakeToken{serial: 99, secret: []byte("legacy secret")}
	challenge := "challenge-used-by-the-legacy-release"
	response, err := token.ChallengeResponse(ctx, 2, []byte(challenge))
	require.NoError(t, err)
	key := make([]byte, 32)
	copy(key, response)

	db := newTestDatabase(t, "work")
	writeLegacy(t, legacyPath, map[string]any{
		"encrypted_databases": []EncryptedRecord{legacySeal(t, key, db)},
		"encrypted_callers":   []EncryptedRecord{legacySeal(t, key, Caller{Path: "/usr/bin/git"})},
		"encryption": []map[string]any{{
			"ChallengeResponse": map[string]any{"serial": 99, "slot": 2, "challenge": challenge},
		}},
	})

	result, err := MigrateLegacy(ctx, legacyPath, newPath, token, logger.Logger{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Resealed)

	cfg, err := Load(newPath)
	require.NoError(t, err)
	defer cfg.Close()
	cfg.SetChallengeResponder(token)
	require.Equal(t, KindChallengeResponse, cfg.Encryption.Kind)
	require.Equal(t, challenge, cfg.Encryption.Challenge)

	dbs, err := cfg.AllDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, []Database{db}, dbs)
}

func TestMigrateLegacyEncryptedWithoutProfile(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, AppName)
	writeLegacy(t, legacyPath, map[string]any{
		"encrypted_databases": []EncryptedRecord{{Data: "AAAA", Nonce: "AAAA"}},
	})

	_, err := MigrateLegacy(context.Background(), legacyPath, filepath.Join(legacyPath, "config.toml"), nil, logger.Logger{})
	require.Error(t, err)
	require.True(t, IsLegacyConfig(legacyPath))
}
