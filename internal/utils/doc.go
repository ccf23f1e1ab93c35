// Package utils provides operating system helpers shared by the commands
// and workflows.
//
//   - GetUsername: returns the current system username
//   - ParentProcess: executable and owner of the calling process, used to
//     enforce the caller allow-list (Linux only)
//   - DisableCoreDumps: keeps secrets out of core files (Linux only)
//   - IsTerminal: checks whether a file is a terminal
package utils
