package configs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/awnumar/memguard"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// Config is the identity store: the databases associated with KeePassXC,
// the callers allowed to use them, and at most one encryption profile that
// protects the encrypted entries.
type Config struct {
	Databases          []Database        `toml:"databases,omitempty"`
	EncryptedDatabases []EncryptedRecord `toml:"encrypted_databases,omitempty"`
	Callers            []Caller          `toml:"callers,omitempty"`
	EncryptedCallers   []EncryptedRecord `toml:"encrypted_callers,omitempty"`
	Encryption         *Encryption       `toml:"encryption,omitempty"`

	path      string
	log       logger.Logger
	responder ChallengeResponder
}

// Database is an identity registered with KeePassXC.
type Database struct {
	ID        string `toml:"id" json:"id" cbor:"id"`
	Key       string `toml:"key" json:"key" cbor:"key"`
	PublicKey string `toml:"pkey" json:"pkey" cbor:"pkey"`
	Group     string `toml:"group" json:"group" cbor:"group"`
	GroupUUID string `toml:"group_uuid" json:"group_uuid" cbor:"group_uuid"`
}

// NewDatabase records identity under the identifier KeePassXC assigned.
func NewDatabase(id string, identity *secrets.KeyPair, group, groupUUID string) Database {
	return Database{
		ID:        id,
		Key:       identity.PrivateBase64(),
		PublicKey: identity.PublicBase64(),
		Group:     group,
		GroupUUID: groupUUID,
	}
}

// Caller is an allow-list entry for processes that may use the stored
// databases. UID and GID are only checked when set.
type Caller struct {
	Path string  `toml:"path" json:"path" cbor:"path"`
	UID  *uint32 `toml:"uid,omitempty" json:"uid,omitempty" cbor:"uid,omitempty"`
	GID  *uint32 `toml:"gid,omitempty" json:"gid,omitempty" cbor:"gid,omitempty"`
}

// Matches reports whether a process running path as uid:gid is allowed.
func (c Caller) Matches(path string, uid, gid uint32) bool {
	if c.Path != path {
		return false
	}
	if c.UID != nil && *c.UID != uid {
		return false
	}
	if c.GID != nil && *c.GID != gid {
		return false
	}
	return true
}

// EncryptedRecord is a sealed Database or Caller.
type EncryptedRecord struct {
	Data  string `toml:"data" json:"data"`
	Nonce string `toml:"nonce" json:"nonce"`
}

// Load reads the configuration at path. A missing file is
// ErrConfigurationMissing.
func Load(path string) (*Config, error) {
	c := &Config{path: path}
	if err := LoadTOML(path, c); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", kerrors.ErrConfigurationMissing, path)
		}
		return nil, fmt.Errorf("failed to load configuration %s: %w", path, err)
	}
	return c, nil
}

// LoadOrNew reads the configuration at path, or returns an empty one if the
// file does not exist yet.
func LoadOrNew(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return &Config{path: path}, nil
	}
	return Load(path)
}

// Save writes the configuration back to the path it was loaded from.
func (c *Config) Save() error {
	if err := SaveTOML(c.path, c); err != nil {
		return fmt.Errorf("failed to save configuration %s: %w", c.path, err)
	}
	return nil
}

// Path returns the file backing the configuration.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) SetLogger(log logger.Logger) {
	c.log = log
}

// SetChallengeResponder sets the hardware token used by challenge-response
// profiles.
func (c *Config) SetChallengeResponder(r ChallengeResponder) {
	c.responder = r
}

// DatabaseCount returns the number of plaintext and encrypted databases.
func (c *Config) DatabaseCount() int {
	return len(c.Databases) + len(c.EncryptedDatabases)
}

// CallerCount returns the number of plaintext and encrypted callers.
func (c *Config) CallerCount() int {
	return len(c.Callers) + len(c.EncryptedCallers)
}

// AllDatabases returns every database, decrypting the encrypted ones. The
// key is only derived when there is something to decrypt.
func (c *Config) AllDatabases(ctx context.Context) ([]Database, error) {
	out := append([]Database(nil), c.Databases...)
	if len(c.EncryptedDatabases) == 0 {
		return out, nil
	}

	key, err := c.atRestKey(ctx)
	if err != nil {
		return nil, err
	}
	for i, rec := range c.EncryptedDatabases {
		var db Database
		if err := openRecord(key.Bytes(), rec, &db); err != nil {
			return nil, fmt.Errorf("encrypted database %d: %w", i, err)
		}
		out = append(out, db)
	}
	c.log.Debugf("decrypted %d database(s)", len(c.EncryptedDatabases))
	return out, nil
}

// AddDatabase appends db, sealed when encrypted is set.
func (c *Config) AddDatabase(ctx context.Context, db Database, encrypted bool) error {
	if !encrypted {
		c.Databases = append(c.Databases, db)
		return nil
	}
	rec, err := c.seal(ctx, db)
	if err != nil {
		return err
	}
	c.EncryptedDatabases = append(c.EncryptedDatabases, rec)
	return nil
}

// AllCallers returns every caller, decrypting the encrypted ones.
func (c *Config) AllCallers(ctx context.Context) ([]Caller, error) {
	out := append([]Caller(nil), c.Callers...)
	if len(c.EncryptedCallers) == 0 {
		return out, nil
	}

	key, err := c.atRestKey(ctx)
	if err != nil {
		return nil, err
	}
	for i, rec := range c.EncryptedCallers {
		var caller Caller
		if err := openRecord(key.Bytes(), rec, &caller); err != nil {
			return nil, fmt.Errorf("encrypted caller %d: %w", i, err)
		}
		out = append(out, caller)
	}
	return out, nil
}

// AddCaller appends caller, sealed when encrypted is set.
func (c *Config) AddCaller(ctx context.Context, caller Caller, encrypted bool) error {
	if !encrypted {
		c.Callers = append(c.Callers, caller)
		return nil
	}
	rec, err := c.seal(ctx, caller)
	if err != nil {
		return err
	}
	c.EncryptedCallers = append(c.EncryptedCallers, rec)
	return nil
}

// ClearCallers removes every caller, plaintext and encrypted.
func (c *Config) ClearCallers() {
	c.Callers = nil
	c.EncryptedCallers = nil
}

// SetEncryption installs the encryption profile. Only one profile may exist.
func (c *Config) SetEncryption(e *Encryption) error {
	if c.Encryption != nil {
		return fmt.Errorf("%w: %s", kerrors.ErrEncryptionProfileExists, c.Encryption)
	}
	c.Encryption = e
	return nil
}

// EncryptAll seals every plaintext database and caller and returns how many
// entries were sealed.
func (c *Config) EncryptAll(ctx context.Context) (int, error) {
	dbs := make([]EncryptedRecord, 0, len(c.Databases))
	for _, db := range c.Databases {
		rec, err := c.seal(ctx, db)
		if err != nil {
			return 0, err
		}
		dbs = append(dbs, rec)
	}
	callers := make([]EncryptedRecord, 0, len(c.Callers))
	for _, caller := range c.Callers {
		rec, err := c.seal(ctx, caller)
		if err != nil {
			return 0, err
		}
		callers = append(callers, rec)
	}

	n := len(dbs) + len(callers)
	c.EncryptedDatabases = append(c.EncryptedDatabases, dbs...)
	c.EncryptedCallers = append(c.EncryptedCallers, callers...)
	c.Databases = nil
	c.Callers = nil
	return n, nil
}

// DecryptAll turns every encrypted entry back into plaintext and removes the
// encryption profile. It returns how many entries were decrypted.
func (c *Config) DecryptAll(ctx context.Context) (int, error) {
	dbs, err := c.AllDatabases(ctx)
	if err != nil {
		return 0, err
	}
	callers, err := c.AllCallers(ctx)
	if err != nil {
		return 0, err
	}

	n := len(c.EncryptedDatabases) + len(c.EncryptedCallers)
	c.Databases, c.EncryptedDatabases = dbs, nil
	c.Callers, c.EncryptedCallers = callers, nil
	c.Close()
	c.Encryption = nil
	return n, nil
}

// Unlock derives the at-rest key now, so a token touch happens before any
// other interactive step.
func (c *Config) Unlock(ctx context.Context) error {
	_, err := c.atRestKey(ctx)
	return err
}

// Close destroys the cached at-rest key.
func (c *Config) Close() {
	if c.Encryption != nil {
		c.Encryption.forget()
	}
}

func (c *Config) seal(ctx context.Context, v any) (EncryptedRecord, error) {
	key, err := c.atRestKey(ctx)
	if err != nil {
		return EncryptedRecord{}, err
	}
	return sealRecord(key.Bytes(), v)
}

func (c *Config) atRestKey(ctx context.Context) (*memguard.LockedBuffer, error) {
	if c.Encryption == nil {
		return nil, fmt.Errorf("%w: no encryption profile configured", kerrors.ErrEncryptionKeyUnavailable)
	}
	return c.Encryption.key(ctx, c.responder, c.log)
}
