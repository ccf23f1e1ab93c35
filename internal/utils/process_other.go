//go:build !linux

package utils

import (
	"fmt"
	"runtime"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

// ParentProcess is only implemented on Linux.
func ParentProcess() (*Process, error) {
	return nil, fmt.Errorf("%w: parent process inspection on %s", kerrors.ErrUnsupported, runtime.GOOS)
}

// DisableCoreDumps is a no-op outside Linux.
func DisableCoreDumps() error {
	return nil
}
