//go:build windows

package keepassxc

import (
	"context"
	"net"
	"os"

	"github.com/Microsoft/go-winio"
)

func dial(ctx context.Context, path string) (net.Conn, error) {
	if path == "" {
		path = DefaultSocketPaths()[0]
	}
	return winio.DialPipeContext(ctx, path)
}

// DefaultSocketPaths returns the per-user named pipe KeePassXC listens on.
func DefaultSocketPaths() []string {
	return []string{`\\.\pipe\` + ServerName + "_" + os.Getenv("USERNAME")}
}
