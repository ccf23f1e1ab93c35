package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/gitcred"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/workflows"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Returns the login for the credential description on stdin",
	Long: `Reads a credential description from git on stdin and writes it back
with username and password filled in from KeePassXC.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := gitcred.Parse(cmd.InOrStdin())
		if err != nil {
			return err
		}
		result, err := workflows.Get(cmd.Context(), env, workflows.GetOptions{Request: req})
		if err != nil {
			return err
		}
		_, err = result.Response.WriteTo(cmd.OutOrStdout())
		return err
	},
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Saves the login in the credential description on stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := gitcred.Parse(cmd.InOrStdin())
		if err != nil {
			return err
		}
		result, err := workflows.Store(cmd.Context(), env, workflows.StoreOptions{Request: req})
		if err != nil {
			return err
		}
		if result.UpdatedUUID != "" {
			Logger.Infof("Updated login %s for %s", result.UpdatedUUID, result.URL)
		} else {
			Logger.Infof("Created login for %s in database %s", result.URL, result.DatabaseID)
		}
		return nil
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Not supported: KeePassXC does not allow deleting logins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// git writes the description regardless; consume it before failing.
		if _, err := gitcred.Parse(cmd.InOrStdin()); err != nil {
			Logger.Debugf("ignoring unreadable erase request: %v", err)
		}
		return workflows.Erase(cmd.Context(), env)
	},
}
