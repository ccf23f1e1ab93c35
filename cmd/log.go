package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/ui"
)

var (
	logLimit int
	logJSON  bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown (most recent)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

func resetLogCommandState() {
	logLimit = 0
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `Displays when databases were associated, logins stored, and the
configuration encrypted or decrypted.

Examples:
  git-credential-keepassxc log          # View full log
  git-credential-keepassxc log -n 10    # Last 10 entries
  git-credential-keepassxc log --json   # JSON output`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := audit.ReadEntries(configs.AuditLogPath(env.ConfigPath))
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}
		if logLimit > 0 && len(entries) > logLimit {
			entries = entries[len(entries)-logLimit:]
		}

		w := cmd.OutOrStdout()
		if logJSON {
			if entries == nil {
				entries = []audit.Entry{}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			ui.Hint(cmd.ErrOrStderr(), "No audit log entries found")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %-12s %-10s %s\n", e.Timestamp, e.Operation, e.User, describe(e))
		}
		return nil
	},
}

func describe(e audit.Entry) string {
	switch {
	case e.URL != "":
		return e.URL + " " + ui.Muted.Sprint(e.DatabaseID)
	case e.DatabaseID != "":
		return e.DatabaseID
	case e.Caller != "":
		return e.Caller
	case e.Profile != "":
		return fmt.Sprintf("%s, %d entries", e.Profile, e.Count)
	case e.Count > 0:
		return fmt.Sprintf("%d entries", e.Count)
	}
	return ""
}
