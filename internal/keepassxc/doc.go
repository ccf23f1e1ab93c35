// Package keepassxc implements the client side of the KeePassXC browser
// integration protocol.
//
// # Transport
//
// KeePassXC listens on a unix socket (a named pipe on Windows). Dial finds
// it, honouring KEEPASSXC_BROWSER_SOCKET_PATH. Each request and reply is one
// JSON object on the stream.
//
// # Session
//
// A Session starts with the plaintext change-public-keys exchange, after
// which every request is sealed with NaCl box under a fresh nonce. A reply is
// only accepted when its nonce is the request nonce incremented by one.
// Notifications that KeePassXC pushes unprompted, such as database-locked,
// are skipped.
//
// Failures reported by KeePassXC are returned as *RemoteError, which matches
// errors.ErrRemoteRequestFailed. Transport and decryption failures are not
// RemoteErrors, so callers can tell a refused request from a broken channel.
package keepassxc
