package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/gitcred"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/keepassxc"
)

// StoreOptions configures the store workflow.
type StoreOptions struct {
	// Request is the credential git approved. Username and password are
	// required.
	Request *gitcred.Request
}

// StoreResult contains the outcome of a store operation.
type StoreResult struct {
	URL        string
	DatabaseID string

	// UpdatedUUID is the entry that was updated; empty when a new login was
	// created.
	UpdatedUUID string
}

// Store saves the login git approved.
//
// If KeePassXC already has a login for the URL, the first one is updated in
// place. Otherwise a new login is created in the first database that
// accepted its stored key, inside that database's configured group.
//
// Returns ErrMalformedCredentialRequest if username or password is missing.
// Returns ErrUnsupported when an existing login would have to be updated
// while several databases are configured, because KeePassXC does not say
// which database an entry belongs to.
// Returns ErrRemoteRequestFailed if KeePassXC does not confirm the write.
func Store(ctx context.Context, env Env, opts StoreOptions) (*StoreResult, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	if err := env.verifyCaller(ctx, cfg); err != nil {
		return nil, err
	}

	req := opts.Request
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username is missing", kerrors.ErrMalformedCredentialRequest)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is missing", kerrors.ErrMalformedCredentialRequest)
	}
	url, err := req.ResolveURL()
	if err != nil {
		return nil, err
	}

	session, dbs, closeSession, err := env.connectDatabases(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSession()

	logins, err := loginsFor(ctx, session, dbs, url)
	if err != nil {
		return nil, err
	}

	db := dbs[0]
	setLogin := keepassxc.SetLoginRequest{
		URL:       url,
		SubmitURL: url,
		ID:        db.ID,
		Login:     req.Username,
		Password:  req.Password,
		Group:     db.Group,
		GroupUUID: db.GroupUUID,
	}

	if len(logins) > 0 {
		if len(logins) > 1 {
			env.Log.Warnf("%d existing logins match %s, updating the first", len(logins), url)
		} else {
			env.Log.Infof("updating existing login %s", logins[0].UUID)
		}
		if cfg.DatabaseCount() > 1 {
			return nil, fmt.Errorf("%w: updating an existing login when multiple databases are configured", kerrors.ErrUnsupported)
		}
		// KeePassXC does not move an existing entry into the group.
		setLogin.UUID = logins[0].UUID
	} else {
		env.Log.Infof("no existing login for %s, creating one", url)
		if cfg.DatabaseCount() > 1 {
			env.Log.Warnf("%d databases configured, saving the new login in %s", cfg.DatabaseCount(), db.ID)
		}
	}

	if err := session.SetLogin(ctx, setLogin); err != nil {
		return nil, fmt.Errorf("failed to store login: %w", err)
	}

	entry := audit.NewEntry("store")
	entry.DatabaseID = db.ID
	entry.URL = url
	audit.Log(env.auditPath(), entry)

	return &StoreResult{URL: url, DatabaseID: db.ID, UpdatedUUID: setLogin.UUID}, nil
}

// Erase always fails: KeePassXC offers no way to delete logins over the
// browser integration protocol.
func Erase(_ context.Context, _ Env) error {
	return fmt.Errorf("%w: KeePassXC doesn't allow erasing logins via socket", kerrors.ErrUnsupported)
}
