package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/ui"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/workflows"
)

var migrateFrom string

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "legacy configuration file (default: its old location)")
}

func resetMigrateCommandState() {
	migrateFrom = ""
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Converts a configuration written by an earlier release",
	Long: `Earlier releases kept a JSON file named git-credential-keepassxc directly
in the user configuration directory. migrate converts it to config.toml,
reseals encrypted entries, and keeps the old file as a .json.bak backup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting migrate command")

		result, err := workflows.Migrate(cmd.Context(), env, workflows.MigrateOptions{LegacyPath: expandHome(migrateFrom)})
		if err != nil {
			return err
		}
		w := cmd.ErrOrStderr()
		ui.Done(w, "Migrated %d database(s) and %d caller(s)", result.Databases, result.Callers)
		if result.Resealed > 0 {
			ui.Hint(w, "Resealed %d encrypted entries", result.Resealed)
		}
		ui.Hint(w, "Backup kept at %s", ui.Path.Sprint(result.BackupPath))
		return nil
	},
}
