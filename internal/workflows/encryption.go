package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

// EncryptOptions configures the encrypt workflow.
type EncryptOptions struct {
	// Profile is challenge-response[:slot[:challenge]] or key-file:<path>.
	Profile string
}

// EncryptResult contains the outcome of an encrypt operation.
type EncryptResult struct {
	Profile string
	Sealed  int
}

// Encrypt creates the encryption profile and seals every plaintext database
// and caller with it.
//
// Returns ErrEncryptionProfileExists if a profile is already configured.
// Returns ErrInvalidEncryptionProfile if Profile cannot be parsed.
// Returns ErrEncryptionKeyUnavailable if the key cannot be derived.
func Encrypt(ctx context.Context, env Env, opts EncryptOptions) (*EncryptResult, error) {
	cfg, err := env.loadOrNewConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	if cfg.Encryption != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrEncryptionProfileExists, cfg.Encryption)
	}

	profile, err := configs.ParseEncryption(ctx, opts.Profile, env.Responder, env.Log)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetEncryption(profile); err != nil {
		return nil, err
	}
	sealed, err := cfg.EncryptAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	entry := audit.NewEntry("encrypt")
	entry.Profile = string(profile.Kind)
	entry.Count = sealed
	audit.Log(env.auditPath(), entry)

	return &EncryptResult{Profile: profile.String(), Sealed: sealed}, nil
}

// DecryptResult contains the outcome of a decrypt operation.
type DecryptResult struct {
	Opened int
}

// Decrypt turns every encrypted entry back into plaintext and removes the
// encryption profile.
//
// Returns ErrEncryptionKeyUnavailable if no profile is configured or the key
// cannot be derived.
func Decrypt(ctx context.Context, env Env) (*DecryptResult, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	if cfg.Encryption == nil {
		return nil, fmt.Errorf("%w: the configuration is not encrypted", kerrors.ErrEncryptionKeyUnavailable)
	}
	opened, err := cfg.DecryptAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	entry := audit.NewEntry("decrypt")
	entry.Count = opened
	audit.Log(env.auditPath(), entry)

	return &DecryptResult{Opened: opened}, nil
}
