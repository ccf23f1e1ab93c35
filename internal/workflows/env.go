package workflows

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/keepassxc"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/utils"
)

// Env is what every workflow needs from the command line.
type Env struct {
	// ConfigPath is the TOML configuration file.
	ConfigPath string

	// Dial connects to KeePassXC.
	Dial func(ctx context.Context) (io.ReadWriteCloser, error)

	Log logger.Logger

	// Responder answers hardware-token challenges. It may be nil when no
	// challenge-response profile is used.
	Responder configs.ChallengeResponder

	// ParentProcess identifies the caller checked against the allow-list.
	// Nil uses utils.ParentProcess.
	ParentProcess func() (*utils.Process, error)
}

func (e *Env) auditPath() string {
	return configs.AuditLogPath(e.ConfigPath)
}

// loadConfig reads an existing configuration. When it is missing but an
// earlier release left its configuration behind, the error says so.
func (e *Env) loadConfig() (*configs.Config, error) {
	cfg, err := configs.Load(e.ConfigPath)
	if err != nil {
		if errors.Is(err, kerrors.ErrConfigurationMissing) {
			if legacy, legacyErr := configs.LegacyConfigPath(); legacyErr == nil && configs.IsLegacyConfig(legacy) {
				return nil, fmt.Errorf("%w; a configuration from an earlier release exists at %s, run migrate", err, legacy)
			}
		}
		return nil, err
	}
	e.attach(cfg)
	return cfg, nil
}

func (e *Env) loadOrNewConfig() (*configs.Config, error) {
	cfg, err := configs.LoadOrNew(e.ConfigPath)
	if err != nil {
		return nil, err
	}
	e.attach(cfg)
	return cfg, nil
}

func (e *Env) attach(cfg *configs.Config) {
	cfg.SetLogger(e.Log)
	if e.Responder != nil {
		cfg.SetChallengeResponder(e.Responder)
	}
}

// openSession dials KeePassXC and performs the handshake. The returned
// function wipes the session keys and closes the connection.
func (e *Env) openSession(ctx context.Context) (*keepassxc.Session, func(), error) {
	if e.Dial == nil {
		return nil, nil, fmt.Errorf("%w: no KeePassXC transport", kerrors.ErrHandshakeFailed)
	}
	conn, err := e.Dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	session, err := keepassxc.Open(ctx, conn, e.Log)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	e.Log.Infof("connected to KeePassXC %s", session.Version)
	return session, func() {
		session.Close()
		conn.Close()
	}, nil
}

// verifyCaller checks the parent process against the allow-list. An empty
// allow-list admits every caller.
func (e *Env) verifyCaller(ctx context.Context, cfg *configs.Config) error {
	if cfg.CallerCount() == 0 {
		return nil
	}
	callers, err := cfg.AllCallers(ctx)
	if err != nil {
		return err
	}

	probe := e.ParentProcess
	if probe == nil {
		probe = utils.ParentProcess
	}
	proc, err := probe()
	if errors.Is(err, kerrors.ErrUnsupported) {
		e.Log.WarnfAlways("callers are configured but cannot be verified: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrCallerNotAllowed, err)
	}

	for _, caller := range callers {
		if caller.Matches(proc.Exe, proc.UID, proc.GID) {
			e.Log.Debugf("caller %s (uid %d, gid %d) allowed", proc.Exe, proc.UID, proc.GID)
			return nil
		}
	}
	return fmt.Errorf("%w: %s (uid %d, gid %d)", kerrors.ErrCallerNotAllowed, proc.Exe, proc.UID, proc.GID)
}

// associatedDatabases returns the databases KeePassXC still recognizes, in
// configuration order. A database KeePassXC rejects is skipped; any other
// failure aborts, since the channel can no longer be trusted.
func associatedDatabases(ctx context.Context, session *keepassxc.Session, dbs []configs.Database, log logger.Logger) ([]configs.Database, error) {
	var confirmed []configs.Database
	for _, db := range dbs {
		err := session.TestAssociate(ctx, db.ID, db.PublicKey)
		var remote *keepassxc.RemoteError
		switch {
		case errors.As(err, &remote):
			log.Warnf("database %s rejected its stored key: %v", db.ID, err)
		case err != nil:
			return nil, fmt.Errorf("test-associate %s: %w", db.ID, err)
		default:
			confirmed = append(confirmed, db)
		}
	}
	if len(confirmed) == 0 {
		return nil, fmt.Errorf("%w: none of %d configured database(s) accepted the stored key", kerrors.ErrNoValidIdentities, len(dbs))
	}
	log.Infof("authenticated against %d database(s)", len(confirmed))
	return confirmed, nil
}

// loginsFor asks KeePassXC for the unexpired logins matching url across dbs.
func loginsFor(ctx context.Context, session *keepassxc.Session, dbs []configs.Database, url string) ([]keepassxc.LoginEntry, error) {
	keys := make([]keepassxc.Key, 0, len(dbs))
	for _, db := range dbs {
		keys = append(keys, keepassxc.Key{ID: db.ID, Key: db.PublicKey})
	}
	entries, err := session.GetLogins(ctx, keepassxc.GetLoginsRequest{URL: url, Keys: keys})
	if err != nil {
		return nil, err
	}

	logins := entries[:0]
	for _, entry := range entries {
		if !entry.Expired {
			logins = append(logins, entry)
		}
	}
	return logins, nil
}

// connectDatabases loads every configured database and re-authenticates them
// over a fresh session.
func (e *Env) connectDatabases(ctx context.Context, cfg *configs.Config) (*keepassxc.Session, []configs.Database, func(), error) {
	dbs, err := cfg.AllDatabases(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(dbs) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no databases configured in %s", kerrors.ErrConfigurationMissing, cfg.Path())
	}

	session, closeSession, err := e.openSession(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	confirmed, err := associatedDatabases(ctx, session, dbs, e.Log)
	if err != nil {
		closeSession()
		return nil, nil, nil, err
	}
	return session, confirmed, closeSession, nil
}
