package workflows

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
)

// AddCallerOptions configures the caller add workflow.
type AddCallerOptions struct {
	// Path is the executable allowed to call the helper, typically git.
	Path string

	// UID and GID restrict the caller to a user or group when set.
	UID *uint32
	GID *uint32

	// Encrypt stores the entry as an encrypted record.
	Encrypt bool
}

// AddCaller appends an entry to the caller allow-list. Once the list is not
// empty, get and store refuse callers that match no entry.
func AddCaller(ctx context.Context, env Env, opts AddCallerOptions) (*configs.Caller, error) {
	if opts.Path == "" {
		return nil, errors.New("caller path is required")
	}
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, err
	}

	cfg, err := env.loadOrNewConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	caller := configs.Caller{Path: path, UID: opts.UID, GID: opts.GID}
	if err := cfg.AddCaller(ctx, caller, opts.Encrypt); err != nil {
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	entry := audit.NewEntry("caller-add")
	entry.Caller = path
	entry.Encrypted = opts.Encrypt
	audit.Log(env.auditPath(), entry)

	return &caller, nil
}

// ClearCallers empties the caller allow-list and returns how many entries
// were removed.
func ClearCallers(_ context.Context, env Env) (int, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return 0, err
	}
	defer cfg.Close()

	n := cfg.CallerCount()
	cfg.ClearCallers()
	if err := cfg.Save(); err != nil {
		return 0, err
	}

	entry := audit.NewEntry("caller-clear")
	entry.Count = n
	audit.Log(env.auditPath(), entry)
	return n, nil
}

// ListCallers returns the allow-list, decrypting encrypted entries.
func ListCallers(ctx context.Context, env Env) ([]configs.Caller, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()
	return cfg.AllCallers(ctx)
}
