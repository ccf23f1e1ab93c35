package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/awnumar/memguard"

	"github.com/PolarWolf314/git-credential-keepassxc/cmd"
	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.Execute(ctx)
	stop()
	memguard.Purge()

	if err != nil {
		ui.Fail(os.Stderr, "%v", err)
		switch {
		case errors.Is(err, kerrors.ErrConfigurationMissing), errors.Is(err, kerrors.ErrNoValidIdentities):
			ui.Hint(os.Stderr, "Run %s with KeePassXC unlocked", ui.Code.Sprint("git-credential-keepassxc configure"))
		case errors.Is(err, kerrors.ErrHandshakeFailed):
			ui.Hint(os.Stderr, "Check that KeePassXC is running with browser integration enabled")
		}
		os.Exit(1)
	}
}
