// Package gitcred reads and writes the credential description format git
// uses to talk to credential helpers: newline separated key=value pairs,
// terminated by a blank line or end of input.
package gitcred
