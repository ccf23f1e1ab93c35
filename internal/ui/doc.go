// Package ui provides semantic text formatting for CLI output.
//
// Formatters render content by kind (commands, paths, user values) and fall
// back to plain decorations when NO_COLOR is set or stderr is not a color
// terminal:
//
//	ui.Code.Sprint("git-credential-keepassxc configure")  // `backticks`
//	ui.Highlight.Sprint("database-1")                     // 'single quotes'
//	ui.Muted.Sprint("encrypted")                          // (parentheses)
//
// Done, Fail and Hint print the status lines the commands end with. All
// of them are meant for stderr; stdout carries git's credential protocol.
package ui
