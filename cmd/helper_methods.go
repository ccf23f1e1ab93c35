package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/utils"
)

// startSpinner shows message with a spinner on stderr while a human is
// expected to act. It stays silent in verbose mode, where log lines would
// interleave with it, and when stderr is not a terminal.
func startSpinner(cmd *cobra.Command, message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	interactive := !verbose && !debug && utils.IsTerminal(os.Stderr)
	if !interactive {
		Logger.Infof("%s", message)
		return s, func() {}
	}

	s.Start()
	return s, s.Stop
}

// expandHome replaces a leading ~/ with the home directory, in a plain path
// or in the path of a key-file: profile.
func expandHome(s string) string {
	prefix := ""
	if rest, ok := strings.CutPrefix(s, "key-file:"); ok {
		prefix, s = "key-file:", rest
	}
	if rest, ok := strings.CutPrefix(s, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, rest)
		}
	}
	return prefix + s
}
