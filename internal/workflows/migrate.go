package workflows

import (
	"context"
	"fmt"
	"os"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
)

// MigrateOptions configures the migrate workflow.
type MigrateOptions struct {
	// LegacyPath is the configuration written by an earlier release; empty
	// means its default location.
	LegacyPath string
}

// Migrate converts a JSON configuration written by an earlier release into
// the TOML configuration at env.ConfigPath. The legacy file is kept as a
// backup.
func Migrate(ctx context.Context, env Env, opts MigrateOptions) (*configs.MigrationResult, error) {
	legacy := opts.LegacyPath
	if legacy == "" {
		var err error
		legacy, err = configs.LegacyConfigPath()
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(env.ConfigPath); err == nil {
		return nil, fmt.Errorf("configuration %s already exists", env.ConfigPath)
	}

	result, err := configs.MigrateLegacy(ctx, legacy, env.ConfigPath, env.Responder, env.Log)
	if err != nil {
		return nil, err
	}

	entry := audit.NewEntry("migrate")
	entry.Count = result.Databases + result.Callers
	audit.Log(env.auditPath(), entry)
	return result, nil
}
