//go:build !windows

package keepassxc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSocketPaths(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	paths := DefaultSocketPaths()
	require.Equal(t, []string{
		"/run/user/1000/app/org.keepassxc.KeePassXC/" + ServerName,
		"/run/user/1000/" + ServerName,
		filepath.Join(os.TempDir(), ServerName),
	}, paths)
}

func TestDialUsesEnvironment(t *testing.T) {
	dir, err := os.MkdirTemp("", "kpxc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "s")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	t.Setenv(SocketEnv, path)

	conn, err := Dial(context.Background(), "")
	require.NoError(t, err)
	conn.Close()
}

func TestDialMissingSocket(t *testing.T) {
	t.Setenv(SocketEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("TMPDIR", t.TempDir())

	_, err := Dial(context.Background(), "")
	require.ErrorContains(t, err, "failed to connect to KeePassXC")
}
