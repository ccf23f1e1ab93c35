package errors

import "errors"

// Session errors indicate the channel to KeePassXC could not be trusted or used.
var (
	// ErrHandshakeFailed indicates the public key exchange with KeePassXC did not complete.
	ErrHandshakeFailed = errors.New("handshake with KeePassXC failed")

	// ErrDecryptionFailed indicates a message or record failed authentication.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNonceMismatch indicates a reply was not bound to the nonce of its request.
	ErrNonceMismatch = errors.New("reply nonce does not match request nonce")

	// ErrRemoteRequestFailed indicates KeePassXC reported a failure or sent a malformed reply.
	ErrRemoteRequestFailed = errors.New("KeePassXC request failed")
)

// Association errors indicate problems with registered identities.
var (
	// ErrAssociationDeclined indicates the association request was denied or timed out in KeePassXC.
	ErrAssociationDeclined = errors.New("association was declined by KeePassXC")

	// ErrNoValidIdentities indicates none of the stored databases passed test-association.
	ErrNoValidIdentities = errors.New("no valid database associations found in configuration file")

	// ErrConfigurationMissing indicates no databases have been registered yet.
	ErrConfigurationMissing = errors.New("no databases configured, run configure first")
)

// Login errors indicate problems with the requested credential.
var (
	// ErrNoMatchingLogin indicates KeePassXC returned no usable login for the URL.
	ErrNoMatchingLogin = errors.New("no matching logins found")

	// ErrMalformedCredentialRequest indicates git sent a request missing required fields.
	ErrMalformedCredentialRequest = errors.New("malformed credential request")
)

// At-rest encryption errors indicate problems with encrypted configuration entries.
var (
	// ErrEncryptionKeyUnavailable indicates the key for encrypted entries could not be obtained.
	ErrEncryptionKeyUnavailable = errors.New("encryption key unavailable")

	// ErrEncryptionProfileExists indicates an encryption profile is already configured.
	ErrEncryptionProfileExists = errors.New("an encryption profile already exists")

	// ErrInvalidEncryptionProfile indicates an encryption profile string could not be parsed.
	ErrInvalidEncryptionProfile = errors.New("invalid encryption profile")
)

// Caller errors indicate the calling process is not on the allow-list.
var (
	// ErrCallerNotAllowed indicates the calling process did not match any configured caller.
	ErrCallerNotAllowed = errors.New("calling process is not allowed to use stored databases")
)

// ErrUnsupported indicates an operation this build or KeePassXC cannot perform.
var ErrUnsupported = errors.New("operation not supported")
