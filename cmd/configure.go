package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/ui"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/workflows"
)

var (
	configureGroup   string
	configureEncrypt bool
)

func init() {
	configureCmd.Flags().StringVar(&configureGroup, "group", workflows.DefaultGroup, "KeePassXC group new logins are saved in")
	configureCmd.Flags().BoolVar(&configureEncrypt, "encrypt", false, "store the new database encrypted (requires an encryption profile)")
}

func resetConfigureCommandState() {
	configureGroup = workflows.DefaultGroup
	configureEncrypt = false
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Associates the helper with the open KeePassXC database",
	Long: `Registers a new permanent key with KeePassXC. KeePassXC asks for a name
for the association; once approved the database is added to the
configuration and reused by get and store.

Run it again to associate further databases.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting configure command")

		var stop func()
		opts := workflows.ConfigureOptions{
			Group:   configureGroup,
			Encrypt: configureEncrypt,
			OnWait:  func() { _, stop = startSpinner(cmd, "Waiting for approval in KeePassXC...") },
			OnDone: func() {
				if stop != nil {
					stop()
				}
			},
		}

		result, err := workflows.Configure(cmd.Context(), env, opts)
		if err != nil {
			return err
		}

		w := cmd.ErrOrStderr()
		detail := ""
		if result.Encrypted {
			detail = " " + ui.Muted.Sprint("encrypted")
		}
		ui.Done(w, "Associated database %s with group %s%s", ui.Highlight.Sprint(result.DatabaseID), ui.Highlight.Sprint(result.Group), detail)
		ui.Hint(w, "Configuration saved to %s", ui.Path.Sprint(result.ConfigPath))
		ui.Hint(w, "Enable the helper with %s", ui.Code.Sprint("git config --global credential.helper keepassxc"))
		return nil
	},
}
