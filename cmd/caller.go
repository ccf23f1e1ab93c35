package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/ui"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/workflows"
)

var (
	callerUID     uint32
	callerGID     uint32
	callerEncrypt bool
)

func init() {
	callerAddCmd.Flags().Uint32Var(&callerUID, "uid", 0, "only allow the caller when run by this user id")
	callerAddCmd.Flags().Uint32Var(&callerGID, "gid", 0, "only allow the caller when run by this group id")
	callerAddCmd.Flags().BoolVar(&callerEncrypt, "encrypt", false, "store the entry encrypted (requires an encryption profile)")

	callerCmd.AddCommand(callerAddCmd)
	callerCmd.AddCommand(callerListCmd)
	callerCmd.AddCommand(callerClearCmd)
}

func resetCallerCommandState() {
	callerUID = 0
	callerGID = 0
	callerEncrypt = false
	for _, name := range []string{"uid", "gid"} {
		if f := callerAddCmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
	}
}

var callerCmd = &cobra.Command{
	Use:   "caller",
	Short: "Manages the programs allowed to use the helper",
	Long: `Once at least one caller is configured, get and store only answer when
the helper was started by a listed executable (checked on Linux).`,
}

var callerAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Allows the executable at path, usually git",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := workflows.AddCallerOptions{Path: args[0], Encrypt: callerEncrypt}
		if cmd.Flags().Changed("uid") {
			uid := callerUID
			opts.UID = &uid
		}
		if cmd.Flags().Changed("gid") {
			gid := callerGID
			opts.GID = &gid
		}

		caller, err := workflows.AddCaller(cmd.Context(), env, opts)
		if err != nil {
			return err
		}
		ui.Done(cmd.ErrOrStderr(), "Allowed caller %s", ui.Path.Sprint(caller.Path))
		return nil
	},
}

var callerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the allowed callers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		callers, err := workflows.ListCallers(cmd.Context(), env)
		if err != nil {
			return err
		}
		if len(callers) == 0 {
			ui.Hint(cmd.ErrOrStderr(), "No callers configured, every caller is allowed")
			return nil
		}
		w := cmd.OutOrStdout()
		for _, c := range callers {
			line := c.Path
			if c.UID != nil {
				line += fmt.Sprintf(" uid=%d", *c.UID)
			}
			if c.GID != nil {
				line += fmt.Sprintf(" gid=%d", *c.GID)
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

var callerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes every allowed caller",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := workflows.ClearCallers(cmd.Context(), env)
		if err != nil {
			return err
		}
		ui.Done(cmd.ErrOrStderr(), "Removed %d caller(s)", n)
		return nil
	},
}
