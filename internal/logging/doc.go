// Package logger provides leveled logging for git-credential-keepassxc.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with colored prefixes and always written to
// stderr, because git reads the credential reply from stdout.
//
// # Verbosity Levels
//
//   - --verbose: Shows info, warning and error messages
//   - --debug: Shows all messages including debug details
//
// Without flags, only WarnfAlways output is shown; fatal errors are printed
// once by the root command.
//
// # Usage
//
// The root command builds one Logger in PersistentPreRunE and passes it to
// workflows, sessions and the configuration store explicitly:
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	session, err := keepassxc.Open(ctx, conn, log)
//
// A zero Logger is valid.
package logger
