// Package errors provides typed error values for git-credential-keepassxc.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Session errors: handshake, nonce and decryption failures on the KeePassXC channel
//   - Association errors: declined registration, no valid stored databases
//   - Login errors: no matching login, malformed request from git
//   - At-rest errors: missing or unusable key for encrypted configuration entries
//   - Caller errors: the calling process is not on the allow-list
//
// None of these are recovered from locally except a failed test-association for a
// single database, which the workflows log and skip.
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("%w: KeePassXC did not send its public key", errors.ErrHandshakeFailed)
//
// Handle errors in the CLI layer:
//
//	if errors.Is(err, kerrors.ErrConfigurationMissing) {
//	    // Point the user at the configure command
//	}
package errors
