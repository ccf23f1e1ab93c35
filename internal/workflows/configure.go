package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// DefaultGroup is the KeePassXC group new logins are stored in.
const DefaultGroup = "Git"

// ConfigureOptions configures the configure workflow.
type ConfigureOptions struct {
	// Group is created in KeePassXC if missing; empty means DefaultGroup.
	Group string

	// Encrypt stores the new database as an encrypted record. The
	// configuration must already have an encryption profile.
	Encrypt bool

	// OnWait is called before waiting for the user to approve the
	// association in KeePassXC, and OnDone once the answer arrived.
	OnWait func()
	OnDone func()
}

// ConfigureResult contains the outcome of a configure operation.
type ConfigureResult struct {
	DatabaseID string
	Group      string
	GroupUUID  string
	Encrypted  bool
	ConfigPath string
	Version    string
}

// Configure registers a new permanent identity with KeePassXC.
//
// It performs the handshake, generates a permanent key pair, and sends an
// associate request that KeePassXC shows to the user. Once approved, the
// group is created (KeePassXC returns the existing one if present) and the
// database is appended to the configuration.
//
// Returns ErrAssociationDeclined if the user refused the association.
// Returns ErrEncryptionKeyUnavailable if Encrypt is set without a profile.
func Configure(ctx context.Context, env Env, opts ConfigureOptions) (*ConfigureResult, error) {
	cfg, err := env.loadOrNewConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	if opts.Encrypt {
		if cfg.Encryption == nil {
			return nil, fmt.Errorf("%w: run encrypt before configure --encrypt", kerrors.ErrEncryptionKeyUnavailable)
		}
		if err := cfg.Unlock(ctx); err != nil {
			return nil, err
		}
	}

	group := opts.Group
	if group == "" {
		group = DefaultGroup
	}

	session, closeSession, err := env.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer closeSession()

	identity, err := secrets.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer identity.Wipe()

	env.Log.Infof("waiting for the association to be approved in KeePassXC")
	if opts.OnWait != nil {
		opts.OnWait()
	}
	assoc, err := session.Associate(ctx, identity)
	if opts.OnDone != nil {
		opts.OnDone()
	}
	if err != nil {
		return nil, err
	}
	env.Log.Infof("associated as %s", assoc.ID)

	created, err := session.CreateNewGroup(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("failed to create group %s: %w", group, err)
	}

	db := configs.NewDatabase(assoc.ID, identity, created.Name, created.UUID)
	if err := cfg.AddDatabase(ctx, db, opts.Encrypt); err != nil {
		return nil, err
	}
	env.Log.Infof("saving configuration to %s", cfg.Path())
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	entry := audit.NewEntry("configure")
	entry.DatabaseID = db.ID
	entry.Encrypted = opts.Encrypt
	audit.Log(env.auditPath(), entry)

	return &ConfigureResult{
		DatabaseID: db.ID,
		Group:      db.Group,
		GroupUUID:  db.GroupUUID,
		Encrypted:  opts.Encrypt,
		ConfigPath: cfg.Path(),
		Version:    session.Version,
	}, nil
}
