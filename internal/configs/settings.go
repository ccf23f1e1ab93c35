package configs

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the configuration directory.
const AppName = "git-credential-keepassxc"

// DefaultConfigPath returns config.toml under the user configuration
// directory, e.g. ~/.config/git-credential-keepassxc/config.toml.
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(configDir, AppName, "config.toml"), nil
}

// AuditLogPath returns the audit log kept next to the configuration at
// configPath.
func AuditLogPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "audit.jsonl")
}
