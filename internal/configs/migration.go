package configs

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// MigrationResult contains information about what was migrated.
type MigrationResult struct {
	Databases  int
	Callers    int
	Resealed   int
	BackupPath string
}

// legacyConfig is the JSON document earlier releases kept in a single file
// named after the application, directly under the user config directory.
// Encrypted records were sealed with AES-256-GCM over the JSON encoding.
type legacyConfig struct {
	Databases          []Database         `json:"databases"`
	EncryptedDatabases []EncryptedRecord  `json:"encrypted_databases"`
	Callers            []Caller           `json:"callers"`
	EncryptedCallers   []EncryptedRecord  `json:"encrypted_callers"`
	Encryption         []legacyEncryption `json:"encryption"`
}

type legacyEncryption struct {
	ChallengeResponse *struct {
		Serial    *uint32 `json:"serial"`
		Slot      uint8   `json:"slot"`
		Challenge string  `json:"challenge"`
	} `json:"ChallengeResponse"`
}

// LegacyConfigPath returns where earlier releases stored their configuration.
func LegacyConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

// IsLegacyConfig reports whether path is a configuration file written by an
// earlier release. Current releases use a directory at the same location.
func IsLegacyConfig(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal(content, &probe) == nil
}

// MigrateLegacy converts the legacy configuration at legacyPath into a TOML
// configuration at newPath. Encrypted entries are opened with the legacy
// key, which the hardware token derives identically, and resealed.
// The legacy file is kept as a backup next to the new directory.
func MigrateLegacy(ctx context.Context, legacyPath, newPath string, r ChallengeResponder, log logger.Logger) (*MigrationResult, error) {
	if !IsLegacyConfig(legacyPath) {
		return nil, fmt.Errorf("%s is not a legacy configuration", legacyPath)
	}

	content, err := os.ReadFile(legacyPath)
	if err != nil {
		return nil, err
	}
	var legacy legacyConfig
	if err := json.Unmarshal(content, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse legacy configuration: %w", err)
	}

	cfg := &Config{
		Databases: legacy.Databases,
		Callers:   legacy.Callers,
		path:      newPath,
		log:       log,
		responder: r,
	}
	defer cfg.Close()

	result := &MigrationResult{
		Databases: len(legacy.Databases) + len(legacy.EncryptedDatabases),
		Callers:   len(legacy.Callers) + len(legacy.EncryptedCallers),
	}

	if len(legacy.Encryption) > 0 {
		profile := legacy.Encryption[0].ChallengeResponse
		if profile == nil {
			return nil, fmt.Errorf("%w: unknown legacy encryption profile", kerrors.ErrUnsupported)
		}
		cfg.Encryption = &Encryption{
			Kind:      KindChallengeResponse,
			Serial:    profile.Serial,
			Slot:      profile.Slot,
			Challenge: profile.Challenge,
		}
		n, err := reseal(ctx, cfg, &legacy)
		if err != nil {
			return nil, err
		}
		result.Resealed = n
	} else if len(legacy.EncryptedDatabases)+len(legacy.EncryptedCallers) > 0 {
		return nil, fmt.Errorf("%w: encrypted entries without an encryption profile", kerrors.ErrEncryptionKeyUnavailable)
	}

	// The new directory takes the place of the legacy file, so move the file
	// away first and put it back if saving fails.
	backupPath := legacyPath + ".json.bak"
	if err := os.Rename(legacyPath, backupPath); err != nil {
		return nil, fmt.Errorf("failed to create backup: %w", err)
	}
	if err := cfg.Save(); err != nil {
		if restoreErr := os.Rename(backupPath, legacyPath); restoreErr != nil {
			return nil, errors.Join(err, restoreErr)
		}
		return nil, err
	}
	result.BackupPath = backupPath
	return result, nil
}

func reseal(ctx context.Context, cfg *Config, legacy *legacyConfig) (int, error) {
	if len(legacy.EncryptedDatabases)+len(legacy.EncryptedCallers) == 0 {
		return 0, nil
	}
	key, err := cfg.atRestKey(ctx)
	if err != nil {
		return 0, err
	}

	for i, rec := range legacy.EncryptedDatabases {
		var db Database
		if err := openLegacyRecord(key.Bytes(), rec, &db); err != nil {
			return 0, fmt.Errorf("legacy encrypted database %d: %w", i, err)
		}
		sealed, err := sealRecord(key.Bytes(), db)
		if err != nil {
			return 0, err
		}
		cfg.EncryptedDatabases = append(cfg.EncryptedDatabases, sealed)
	}
	for i, rec := range legacy.EncryptedCallers {
		var caller Caller
		if err := openLegacyRecord(key.Bytes(), rec, &caller); err != nil {
			return 0, fmt.Errorf("legacy encrypted caller %d: %w", i, err)
		}
		sealed, err := sealRecord(key.Bytes(), caller)
		if err != nil {
			return 0, err
		}
		cfg.EncryptedCallers = append(cfg.EncryptedCallers, sealed)
	}
	return len(cfg.EncryptedDatabases) + len(cfg.EncryptedCallers), nil
}

func openLegacyRecord(key []byte, rec EncryptedRecord, v any) error {
	data, err := base64.StdEncoding.DecodeString(rec.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(rec.Nonce)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aead, err := cipher.NewGCM(block)
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

	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: malformed record: %w", kerrors.ErrDecryptionFailed, err)
	}
	return nil
}
