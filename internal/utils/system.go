package utils

import (
	"os/user"
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// Process identifies a running program by executable path and owner.
type Process struct {
	PID int
	Exe string
	UID uint32
	GID uint32
}
