package keepassxc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

// Action names a browser integration request.
type Action string

const (
	ActionChangePublicKeys Action = "change-public-keys"
	ActionAssociate        Action = "associate"
	ActionTestAssociate    Action = "test-associate"
	ActionGetLogins        Action = "get-logins"
	ActionSetLogin         Action = "set-login"
	ActionCreateNewGroup   Action = "create-new-group"
	ActionDatabaseLocked   Action = "database-locked"
	ActionDatabaseUnlocked Action = "database-unlocked"
)

// Code is a KeePassXC error code.
type Code int

const (
	CodeDatabaseNotOpened Code = 1
	CodeActionTimeout     Code = 5
	CodeActionCancelled   Code = 6
	CodeAssociationFailed Code = 8
	CodeNoLoginsFound     Code = 15
)

// UnmarshalJSON accepts both "15" and 15.
func (c *Code) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid error code %q", s)
	}
	*c = Code(n)
	return nil
}

// MarshalJSON writes the code as a string, as KeePassXC does.
func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(c)))
}

// Boolean is a flag that KeePassXC sends either as "true"/"false" or as a
// JSON boolean depending on the action and version.
type Boolean bool

func (b *Boolean) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case `true`, `"true"`:
		*b = true
	case `false`, `"false"`, `null`, `""`:
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

func (b Boolean) MarshalJSON() ([]byte, error) {
	if b {
		return []byte(`"true"`), nil
	}
	return []byte(`"false"`), nil
}

// Envelope is the outer JSON object exchanged with KeePassXC. Only the key
// exchange carries plaintext fields; every other action puts its payload in
// Message, sealed under Nonce.
type Envelope struct {
	Action    Action   `json:"action"`
	Message   string   `json:"message,omitempty"`
	Nonce     string   `json:"nonce,omitempty"`
	ClientID  string   `json:"clientID,omitempty"`
	PublicKey string   `json:"publicKey,omitempty"`
	Success   *Boolean `json:"success,omitempty"`
	Version   string   `json:"version,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorCode Code     `json:"errorCode,omitempty"`
}

// Key is an (identifier, permanent public key) pair sent with get-logins.
type Key struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type AssociateRequest struct {
	Action Action `json:"action"`
	Key    string `json:"key"`
	IDKey  string `json:"idKey"`
}

type AssociateResponse struct {
	ID      string  `json:"id"`
	Hash    string  `json:"hash"`
	Version string  `json:"version"`
	Success Boolean `json:"success"`
}

type TestAssociateRequest struct {
	Action Action `json:"action"`
	ID     string `json:"id"`
	Key    string `json:"key"`
}

type TestAssociateResponse struct {
	ID      string  `json:"id"`
	Hash    string  `json:"hash"`
	Version string  `json:"version"`
	Success Boolean `json:"success"`
}

type GetLoginsRequest struct {
	Action    Action `json:"action"`
	URL       string `json:"url"`
	SubmitURL string `json:"submitUrl,omitempty"`
	HTTPAuth  string `json:"httpAuth,omitempty"`
	Keys      []Key  `json:"keys"`
}

// LoginEntry is one credential returned by get-logins.
type LoginEntry struct {
	Login    string  `json:"login"`
	Name     string  `json:"name"`
	Password string  `json:"password"`
	UUID     string  `json:"uuid"`
	Group    string  `json:"group,omitempty"`
	Expired  Boolean `json:"expired,omitempty"`
}

type GetLoginsResponse struct {
	Entries []LoginEntry `json:"entries"`
	Success Boolean      `json:"success"`
}

// SetLoginRequest creates a login when UUID is empty and updates the entry
// with that UUID otherwise.
type SetLoginRequest struct {
	Action    Action `json:"action"`
	URL       string `json:"url"`
	SubmitURL string `json:"submitUrl"`
	ID        string `json:"id"`
	Login     string `json:"login"`
	Password  string `json:"password"`
	Group     string `json:"group"`
	GroupUUID string `json:"groupUuid"`
	UUID      string `json:"uuid,omitempty"`
}

type SetLoginResponse struct {
	Success   Boolean `json:"success"`
	Error     string  `json:"error"`
	ErrorCode Code    `json:"errorCode"`
}

type CreateNewGroupRequest struct {
	Action    Action `json:"action"`
	GroupName string `json:"groupName"`
}

// Group is a KeePassXC group as returned by create-new-group.
type Group struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// RemoteError is a failure reported by KeePassXC, or a reply that could not
// be interpreted. It matches ErrRemoteRequestFailed.
type RemoteError struct {
	Action  Action
	Message string
	Code    Code
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request was not successful"
	}
	if e.Code != 0 {
		return fmt.Sprintf("KeePassXC %s failed: %s (code %d)", e.Action, msg, e.Code)
	}
	return fmt.Sprintf("KeePassXC %s failed: %s", e.Action, msg)
}

func (e *RemoteError) Unwrap() error {
	return kerrors.ErrRemoteRequestFailed
}
