package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/configs"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/keepassxc"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/utils"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/workflows"
)

var (
	verbose    bool
	debug      bool
	configPath string
	socketPath string

	Logger logger.Logger
	env    workflows.Env

	// dialer replaces the KeePassXC transport in tests.
	dialer func(ctx context.Context) (io.ReadWriteCloser, error)

	RootCmd = &cobra.Command{
		Use:   "git-credential-keepassxc",
		Short: "Git credential helper backed by KeePassXC",
		Long: `Stores and retrieves git credentials in KeePassXC through its browser
integration protocol.

Associate the helper with an open KeePassXC database once:

  git-credential-keepassxc configure

then let git use it:

  git config --global credential.helper keepassxc`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (default: user config directory)")
	RootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "KeePassXC socket or pipe (default: $"+keepassxc.SocketEnv+" or the platform default)")

	RootCmd.AddCommand(configureCmd)
	RootCmd.AddCommand(getCmd)
	RootCmd.AddCommand(storeCmd)
	RootCmd.AddCommand(eraseCmd)
	RootCmd.AddCommand(encryptCmd)
	RootCmd.AddCommand(decryptCmd)
	RootCmd.AddCommand(callerCmd)
	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(logCmd)
}

// Execute runs the command line.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	Logger = logger.Logger{
		Verbose: verbose,
		Debug:   debug,
		Out:     cmd.ErrOrStderr(),
	}
	Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.Name(), verbose, debug)

	if err := utils.DisableCoreDumps(); err != nil {
		Logger.Warnf("%v", err)
	}

	path := configPath
	if path == "" {
		var err error
		path, err = configs.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	Logger.Debugf("Using configuration %s", path)

	dial := dialer
	if dial == nil {
		dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
			return keepassxc.Dial(ctx, socketPath)
		}
	}

	token := configs.NewYubiKey()
	var stop func()
	token.OnWait = func() { _, stop = startSpinner(cmd, "Touch your hardware token...") }
	token.OnDone = func() {
		if stop != nil {
			stop()
		}
	}

	env = workflows.Env{
		ConfigPath: path,
		Dial:       dial,
		Log:        Logger,
		Responder:  token,
	}
	return nil
}

// Helper functions for testing

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
	socketPath = ""
	dialer = nil
	resetConfigureCommandState()
	resetCallerCommandState()
	resetMigrateCommandState()
	resetLogCommandState()
}

// SetDialer replaces the KeePassXC transport for testing.
func SetDialer(d func(ctx context.Context) (io.ReadWriteCloser, error)) {
	dialer = d
}
