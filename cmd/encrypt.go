package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/ui"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/workflows"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <profile>",
	Short: "Encrypts the stored databases and callers",
	Long: `Creates the encryption profile and seals every stored database and caller
with it. Only one profile can exist.

Profiles:
  challenge-response[:slot[:challenge]]  HMAC-SHA1 hardware token (default slot 2,
                                         random 64 character challenge)
  key-file:<path>                        base64 encoded 32-byte key, created if
                                         the file does not exist`,
	Example: `  git-credential-keepassxc encrypt challenge-response
  git-credential-keepassxc encrypt challenge-response:1
  git-credential-keepassxc encrypt key-file:~/.local/share/keepassxc-git.key`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting encrypt command")

		result, err := workflows.Encrypt(cmd.Context(), env, workflows.EncryptOptions{Profile: expandHome(args[0])})
		if err != nil {
			return err
		}
		ui.Done(cmd.ErrOrStderr(), "Encrypted %d entries with %s", result.Sealed, ui.Highlight.Sprint(result.Profile))
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypts the stored databases and callers and removes the encryption profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting decrypt command")

		result, err := workflows.Decrypt(cmd.Context(), env)
		if err != nil {
			return err
		}
		ui.Done(cmd.ErrOrStderr(), "Decrypted %d entries", result.Opened)
		ui.Hint(cmd.ErrOrStderr(), "Stored keys are now in plain text in %s", ui.Path.Sprint(env.ConfigPath))
		return nil
	},
}
