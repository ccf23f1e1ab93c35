// Package workflows provides high-level orchestration for the helper's
// commands.
//
// Workflows coordinate the configuration store, the KeePassXC session and
// the audit log to implement complete user-facing features. Each workflow
// handles a single command's business logic, independent of CLI concerns
// like flag parsing, spinners, and output formatting.
//
// # Available Workflows
//
//   - Configure: associates a new database with KeePassXC and stores it
//   - Get: answers git's credential fill request
//   - Store: creates or updates the login git approved
//   - Erase: rejected, KeePassXC offers no way to delete logins
//   - Encrypt, Decrypt: add or remove at-rest encryption of the store
//   - AddCaller, ClearCallers, ListCallers: manage the caller allow-list
//   - Migrate: converts a configuration written by an earlier release
//
// # Sessions
//
// Every workflow that talks to KeePassXC opens exactly one session through
// Env.Dial, performs the handshake, and discards the session keys when it
// returns. Stored databases are re-authenticated with test-associate on
// every get and store.
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package. Use
// errors.Is() to check for specific error conditions:
//
//	result, err := workflows.Get(ctx, env, opts)
//	if errors.Is(err, kerrors.ErrNoValidIdentities) {
//	    // suggest running configure again
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Associating and hardware-token challenges wait for a human; cancelling the
// context aborts the wait.
package workflows
