package workflows

import (
	"context"
	"fmt"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/gitcred"
)

// GetOptions configures the get workflow.
type GetOptions struct {
	// Request is the credential description git sent.
	Request *gitcred.Request
}

// GetResult contains the outcome of a get operation.
type GetResult struct {
	// Response is the request with username and password filled in.
	Response *gitcred.Request

	// Matches is the number of unexpired logins KeePassXC returned.
	Matches int
}

// Get looks up the login for the requested URL.
//
// Every configured database is re-authenticated; databases KeePassXC no
// longer recognizes are skipped. Expired logins are ignored, and when more
// than one login matches the first one wins.
//
// Returns ErrMalformedCredentialRequest if no URL can be resolved.
// Returns ErrNoValidIdentities if no configured database is recognized.
// Returns ErrNoMatchingLogin if KeePassXC has no login for the URL.
func Get(ctx context.Context, env Env, opts GetOptions) (*GetResult, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	if err := env.verifyCaller(ctx, cfg); err != nil {
		return nil, err
	}

	url, err := opts.Request.ResolveURL()
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
	if len(logins) == 0 {
		return nil, fmt.Errorf("%w for %s", kerrors.ErrNoMatchingLogin, url)
	}
	env.Log.Infof("KeePassXC returned %d login(s)", len(logins))
	if len(logins) > 1 {
		env.Log.Warnf("%d logins match %s, returning the first", len(logins), url)
	}

	login := logins[0]
	return &GetResult{
		Response: opts.Request.WithCredentials(login.Login, login.Password),
		Matches:  len(logins),
	}, nil
}
