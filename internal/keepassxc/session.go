package keepassxc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
	logger "github.com/PolarWolf314/git-credential-keepassxc/internal/logging"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// Session is one handshake-scoped conversation with KeePassXC. It owns a
// throwaway key pair and client identifier and is never resumed.
//
// Requests are strictly sequential; a Session must not be shared between
// goroutines.
type Session struct {
	conn io.ReadWriter
	enc  *json.Encoder
	dec  *json.Decoder
	log  logger.Logger

	clientID string
	local    *secrets.KeyPair
	remote   *[secrets.KeySize]byte
	channel  *secrets.Channel

	// Version is the KeePassXC version reported during the handshake.
	Version string
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// NewSession prepares a session over conn with a fresh key pair and client
// identifier. Handshake must succeed before any other request.
func NewSession(conn io.ReadWriter, log logger.Logger) (*Session, error) {
	local, err := secrets.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	clientID, err := secrets.NewClientID()
	if err != nil {
		local.Wipe()
		return nil, err
	}
	return &Session{
		conn:     conn,
		enc:      json.NewEncoder(conn),
		dec:      json.NewDecoder(conn),
		log:      log,
		clientID: clientID,
		local:    local,
	}, nil
}

// Open creates a session and performs the handshake.
func Open(ctx context.Context, conn io.ReadWriter, log logger.Logger) (*Session, error) {
	s, err := NewSession(conn, log)
	if err != nil {
		return nil, err
	}
	if err := s.Handshake(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ClientID returns the random identifier of this session.
func (s *Session) ClientID() string {
	return s.clientID
}

// PublicKey returns the session public key.
func (s *Session) PublicKey() string {
	return s.local.PublicBase64()
}

// Handshake exchanges public keys with KeePassXC and sets up the encrypted
// channel. It may only succeed once per session.
func (s *Session) Handshake(ctx context.Context) error {
	if s.remote != nil {
		return fmt.Errorf("%w: session already established", kerrors.ErrHandshakeFailed)
	}

	nonce, err := secrets.NewNonce()
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrHandshakeFailed, err)
	}

	s.log.Debugf("exchanging public keys as client %s", s.clientID)
	reply, err := s.exchange(ctx, &Envelope{
		Action:    ActionChangePublicKeys,
		PublicKey: s.local.PublicBase64(),
		Nonce:     nonce.String(),
		ClientID:  s.clientID,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrHandshakeFailed, err)
	}
	if reply.Error != "" || reply.ErrorCode != 0 {
		return fmt.Errorf("%w: %w", kerrors.ErrHandshakeFailed, remoteError(reply))
	}
	if reply.Success == nil || !bool(*reply.Success) {
		return fmt.Errorf("%w: KeePassXC did not report success", kerrors.ErrHandshakeFailed)
	}
	if reply.PublicKey == "" {
		return fmt.Errorf("%w: reply carried no public key", kerrors.ErrHandshakeFailed)
	}
	if reply.Nonce != "" {
		replyNonce, err := secrets.ParseNonce(reply.Nonce)
		if err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrHandshakeFailed, err)
		}
		if err := secrets.VerifyReplyNonce(replyNonce, nonce); err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrHandshakeFailed, err)
		}
	}

	remote, err := secrets.DecodeKey(reply.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: invalid public key: %w", kerrors.ErrHandshakeFailed, err)
	}
	channel, err := secrets.Establish(s.local, remote)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrHandshakeFailed, err)
	}

	s.remote = remote
	s.channel = channel
	s.Version = reply.Version
	s.log.Debugf("handshake complete, KeePassXC version %s", reply.Version)
	return nil
}

// Associate registers identity with KeePassXC. The request blocks until a
// human approves or denies it; a refusal is ErrAssociationDeclined.
func (s *Session) Associate(ctx context.Context, identity *secrets.KeyPair) (*AssociateResponse, error) {
	req := AssociateRequest{
		Action: ActionAssociate,
		Key:    s.local.PublicBase64(),
		IDKey:  identity.PublicBase64(),
	}
	var resp AssociateResponse
	if err := s.call(ctx, ActionAssociate, req, &resp); err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) {
			return nil, fmt.Errorf("%w: %w", kerrors.ErrAssociationDeclined, err)
		}
		return nil, err
	}
	if !resp.Success || resp.ID == "" {
		return nil, fmt.Errorf("%w: KeePassXC returned no identifier", kerrors.ErrAssociationDeclined)
	}
	return &resp, nil
}

// TestAssociate checks that the identity id with public key key is still
// registered. A negative answer is a *RemoteError.
func (s *Session) TestAssociate(ctx context.Context, id, key string) error {
	req := TestAssociateRequest{
		Action: ActionTestAssociate,
		ID:     id,
		Key:    key,
	}
	var resp TestAssociateResponse
	if err := s.call(ctx, ActionTestAssociate, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RemoteError{Action: ActionTestAssociate, Message: fmt.Sprintf("association %s not confirmed", id)}
	}
	return nil
}

// GetLogins returns the logins matching req.URL across req.Keys. KeePassXC
// reports an empty result as an error; it is returned here as no entries.
func (s *Session) GetLogins(ctx context.Context, req GetLoginsRequest) ([]LoginEntry, error) {
	req.Action = ActionGetLogins
	var resp GetLoginsResponse
	if err := s.call(ctx, ActionGetLogins, req, &resp); err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Code == CodeNoLoginsFound {
			return nil, nil
		}
		return nil, err
	}
	if !resp.Success {
		return nil, &RemoteError{Action: ActionGetLogins}
	}
	return resp.Entries, nil
}

// SetLogin creates or updates a login. Success requires both the success
// flag and an error field that is empty or "success".
func (s *Session) SetLogin(ctx context.Context, req SetLoginRequest) error {
	req.Action = ActionSetLogin
	var resp SetLoginResponse
	if err := s.call(ctx, ActionSetLogin, req, &resp); err != nil {
		return err
	}
	if !resp.Success || (resp.Error != "" && resp.Error != "success") {
		return &RemoteError{Action: ActionSetLogin, Message: resp.Error, Code: resp.ErrorCode}
	}
	return nil
}

// CreateNewGroup creates the group name, or returns the existing one.
func (s *Session) CreateNewGroup(ctx context.Context, name string) (*Group, error) {
	req := CreateNewGroupRequest{
		Action:    ActionCreateNewGroup,
		GroupName: name,
	}
	var group Group
	if err := s.call(ctx, ActionCreateNewGroup, req, &group); err != nil {
		return nil, err
	}
	if group.UUID == "" {
		return nil, &RemoteError{Action: ActionCreateNewGroup, Message: "reply carried no group uuid"}
	}
	return &group, nil
}

// Close wipes the session keys. It does not close the underlying connection.
func (s *Session) Close() {
	if s.channel != nil {
		s.channel.Close()
	}
	s.local.Wipe()
}

// call seals req, sends it, and opens the reply into resp.
func (s *Session) call(ctx context.Context, action Action, req, resp any) error {
	if s.channel == nil {
		return fmt.Errorf("%w: %s sent before handshake", kerrors.ErrHandshakeFailed, action)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}
	message, nonce, err := s.channel.Encrypt(payload)
	secrets.Wipe(payload)
	if err != nil {
		return err
	}

	s.log.Debugf("sending %s request", action)
	reply, err := s.exchange(ctx, &Envelope{
		Action:   action,
		Message:  message,
		Nonce:    nonce.String(),
		ClientID: s.clientID,
	})
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	if reply.Error != "" || reply.ErrorCode != 0 {
		return remoteError(reply)
	}
	if reply.Message == "" || reply.Nonce == "" {
		return &RemoteError{Action: action, Message: "reply carried no message"}
	}

	replyNonce, err := secrets.ParseNonce(reply.Nonce)
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrDecryptionFailed, err)
	}
	plain, err := s.channel.DecryptReply(reply.Message, replyNonce, nonce)
	if err != nil {
		return fmt.Errorf("%s reply rejected: %w", action, err)
	}
	defer secrets.Wipe(plain)

	var inner struct {
		Nonce string `json:"nonce"`
	}
	if err := json.Unmarshal(plain, &inner); err != nil {
		return &RemoteError{Action: action, Message: fmt.Sprintf("malformed reply: %v", err)}
	}
	if inner.Nonce != "" && inner.Nonce != replyNonce.String() {
		return fmt.Errorf("%s reply rejected: %w: %w", action, kerrors.ErrDecryptionFailed, kerrors.ErrNonceMismatch)
	}
	if err := json.Unmarshal(plain, resp); err != nil {
		return &RemoteError{Action: action, Message: fmt.Sprintf("malformed reply: %v", err)}
	}
	return nil
}

// exchange writes req and returns the first reply for the same action.
// Unsolicited notifications such as database-locked are skipped. ctx
// cancellation interrupts blocked I/O when conn supports deadlines.
func (s *Session) exchange(ctx context.Context, req *Envelope) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d, ok := s.conn.(deadliner); ok {
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	if err := s.enc.Encode(req); err != nil {
		return nil, ioError(ctx, "write", err)
	}
	for {
		var reply Envelope
		if err := s.dec.Decode(&reply); err != nil {
			return nil, ioError(ctx, "read", err)
		}
		if reply.Action != req.Action {
			s.log.Debugf("skipping unsolicited %q message", reply.Action)
			continue
		}
		return &reply, nil
	}
}

func ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("failed to %s message: %w", op, ctxErr)
	}
	return fmt.Errorf("failed to %s message: %w", op, err)
}

func remoteError(reply *Envelope) *RemoteError {
	return &RemoteError{Action: reply.Action, Message: reply.Error, Code: reply.ErrorCode}
}
