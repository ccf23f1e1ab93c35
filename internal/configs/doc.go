// Package configs manages the identity store of git-credential-keepassxc.
//
// The store is a TOML document, by default at
// ~/.config/git-credential-keepassxc/config.toml, holding:
//
//   - databases: identities associated with KeePassXC (id, permanent key pair, group)
//   - callers: the allow-list of programs that may use them
//   - encryption: at most one profile protecting encrypted entries
//
// Writes replace the file atomically and leave it readable only by its owner.
//
// # At-Rest Encryption
//
// Databases and callers can be stored as encrypted records. A record is the
// CBOR encoding of the entry sealed with ChaCha20-Poly1305 under a random
// 12-byte nonce; both are stored as base64.
//
// The key comes from the encryption profile, which is one of:
//
//   - challenge-response: the HMAC-SHA1 answer of a hardware token to a fixed
//     64 character challenge, zero-padded to 32 bytes
//   - key-file: 32 random bytes stored base64 encoded in a file
//
// The key is derived on first use, kept in a memguard LockedBuffer for the
// rest of the process, and never written to disk. Close destroys it.
//
// Encrypted entries without a profile are reported as
// ErrEncryptionKeyUnavailable, never as missing.
//
// # Hardware Tokens
//
// YubiKey shells out to ykinfo and ykchalresp, or ykman. Builds tagged
// nohwtoken replace it with a stub that returns ErrUnsupported.
package configs
