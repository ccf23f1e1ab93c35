// Package audit records changes to the identity store.
//
// Configuring a database, storing a login, and changing the encryption of
// the store are appended to a local audit log so a user can see when a new
// identity was registered or a login was written on their behalf.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) next to
// the configuration:
//
//	~/.config/git-credential-keepassxc/audit.jsonl
//
// Each entry contains the UTC timestamp, the local user, the operation name
// and operation-specific details such as the database identifier or URL.
// Passwords are never recorded.
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails the operation continues
// without error.
package audit
