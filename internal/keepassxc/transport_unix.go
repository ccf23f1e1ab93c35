//go:build !windows

package keepassxc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
)

func dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	if path != "" {
		return d.DialContext(ctx, "unix", path)
	}

	var errs []error
	for _, candidate := range DefaultSocketPaths() {
		conn, err := d.DialContext(ctx, "unix", candidate)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// DefaultSocketPaths lists the socket locations KeePassXC uses, most specific
// first: the Flatpak runtime directory, the XDG runtime directory and the
// temporary directory.
func DefaultSocketPaths() []string {
	var paths []string
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		paths = append(paths,
			filepath.Join(runtime, "app", "org.keepassxc.KeePassXC", ServerName),
			filepath.Join(runtime, ServerName),
		)
	}
	return append(paths, filepath.Join(os.TempDir(), ServerName))
}
