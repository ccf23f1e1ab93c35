// Package secrets provides the cryptographic primitives used to talk to
// KeePassXC.
//
// # Key Pairs
//
// Every session uses a throwaway Curve25519 key pair for the encrypted
// channel. Every associated database additionally has a permanent key pair
// whose public half is the identity registered with KeePassXC. Both are
// represented by KeyPair and encoded as standard base64.
//
// # Channel
//
// Channel wraps NaCl box (X25519, XSalsa20, Poly1305) with a precomputed
// shared key. Each message is sealed under a fresh random 24-byte nonce, and
// KeePassXC answers with that nonce incremented by one as a little-endian
// integer. DecryptReply refuses any reply that is not bound to its request.
//
// # Memory Hygiene
//
// Private keys and shared keys are wiped with memguard when a session ends.
package secrets
