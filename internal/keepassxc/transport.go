package keepassxc

import (
	"context"
	"fmt"
	"net"
	"os"
)

// SocketEnv overrides the default endpoint when no explicit path is given.
const SocketEnv = "KEEPASSXC_BROWSER_SOCKET_PATH"

// ServerName is the endpoint name KeePassXC listens on for browser
// integration clients.
const ServerName = "org.keepassxc.KeePassXC.BrowserServer"

// Dial connects to KeePassXC. An empty path falls back to SocketEnv and then
// to the platform defaults.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	if path == "" {
		path = os.Getenv(SocketEnv)
	}
	conn, err := dial(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to KeePassXC, is it running with browser integration enabled? %w", err)
	}
	return conn, nil
}
