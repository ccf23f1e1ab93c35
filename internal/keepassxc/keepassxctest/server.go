// Package keepassxctest provides an in-memory KeePassXC peer that speaks the
// browser integration protocol, for tests that need a session without a
// running KeePassXC.
package keepassxctest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/keepassxc"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/secrets"
)

// Request is a decrypted request received by the server.
type Request struct {
	Action  keepassxc.Action
	Payload json.RawMessage
}

// Decode unmarshals the request payload into v.
func (r Request) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}

// Server is a fake KeePassXC. Exported fields configure its behavior and may
// be set before the first Dial; Requests is filled as clients talk to it.
type Server struct {
	mu   sync.Mutex
	keys *secrets.KeyPair
	seq  int

	// Associations maps registered identifiers to their public keys.
	Associations map[string]string
	// AssociateID is the identifier handed out by the next associate.
	AssociateID string
	// DeclineAssociate answers associate as if the user refused it.
	DeclineAssociate bool
	// Entries maps URLs to the logins get-logins returns for them.
	Entries map[string][]keepassxc.LoginEntry
	// Groups maps group names to uuids; create-new-group fills it.
	Groups map[string]string
	// SetLoginError is returned in the error field of a "successful"
	// set-login reply.
	SetLoginError string
	// SetLoginFail answers set-login with success=false.
	SetLoginFail bool
	// RejectHandshake answers change-public-keys with success=false.
	RejectHandshake bool
	// OmitHandshakeKey leaves the public key out of a successful
	// change-public-keys reply.
	OmitHandshakeKey bool
	// BadHandshakeKey replies to change-public-keys with a key that does not
	// decode.
	BadHandshakeKey bool
	// CorruptReplyNonce seals replies under the request nonce instead of its
	// increment.
	CorruptReplyNonce bool
	// Broadcast sends a database-locked notification before every reply.
	Broadcast bool
	// Stall reads requests without ever answering.
	Stall bool

	Requests []Request
}

// NewServer returns a server with a fresh key pair and no associations.
func NewServer() *Server {
	keys, err := secrets.GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	return &Server{
		keys:         keys,
		Associations: make(map[string]string),
		Entries:      make(map[string][]keepassxc.LoginEntry),
		Groups:       make(map[string]string),
	}
}

// Dial opens a new in-memory connection to the server.
func (s *Server) Dial(_ context.Context) (io.ReadWriteCloser, error) {
	client, server := net.Pipe()
	go s.serve(server)
	return client, nil
}

// RequestsFor returns the recorded requests for action.
func (s *Server) RequestsFor(action keepassxc.Action) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.Requests {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

// Update changes the server configuration while connections are being
// served.
func (s *Server) Update(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Associate registers id with public key key, as if configured earlier.
func (s *Server) Associate(id, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Associations[id] = key
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	var channel *secrets.Channel

	for {
		var req keepassxc.Envelope
		if err := dec.Decode(&req); err != nil {
			return
		}

		s.mu.Lock()
		stall, broadcast := s.Stall, s.Broadcast
		s.mu.Unlock()
		if stall {
			continue
		}

		var reply *keepassxc.Envelope
		if req.Action == keepassxc.ActionChangePublicKeys {
			reply, channel = s.handshake(&req)
		} else {
			reply = s.handleEncrypted(channel, &req)
		}

		if broadcast {
			if err := enc.Encode(keepassxc.Envelope{Action: keepassxc.ActionDatabaseLocked}); err != nil {
				return
			}
		}
		if err := enc.Encode(reply); err != nil {
			return
		}
	}
}

func (s *Server) handshake(req *keepassxc.Envelope) (*keepassxc.Envelope, *secrets.Channel) {
	s.mu.Lock()
	reject, omitKey, badKey := s.RejectHandshake, s.OmitHandshakeKey, s.BadHandshakeKey
	s.mu.Unlock()

	ok := keepassxc.Boolean(!reject)
	reply := &keepassxc.Envelope{
		Action:  req.Action,
		Version: "2.7.9",
		Success: &ok,
	}
	if reject {
		return reply, nil
	}

	clientKey, err := secrets.DecodeKey(req.PublicKey)
	if err != nil {
		return errorReply(req.Action, "Key change was not successful", 3), nil
	}
	nonce, err := secrets.ParseNonce(req.Nonce)
	if err != nil {
		return errorReply(req.Action, "Nonce is invalid", 3), nil
	}
	channel, err := secrets.Establish(s.keys, clientKey)
	if err != nil {
		return errorReply(req.Action, err.Error(), 3), nil
	}

	reply.Nonce = nonce.Increment().String()
	switch {
	case omitKey:
	case badKey:
		reply.PublicKey = "bm90IGEga2V5"
	default:
		reply.PublicKey = s.keys.PublicBase64()
	}
	return reply, channel
}

func (s *Server) handleEncrypted(channel *secrets.Channel, req *keepassxc.Envelope) *keepassxc.Envelope {
	if channel == nil {
		return errorReply(req.Action, "Public key not set", 2)
	}
	nonce, err := secrets.ParseNonce(req.Nonce)
	if err != nil {
		return errorReply(req.Action, "Nonce is invalid", 3)
	}
	plain, err := channel.Decrypt(req.Message, nonce)
	if err != nil {
		return errorReply(req.Action, "Message cannot be decrypted", 4)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, Request{Action: req.Action, Payload: plain})

	payload, failure := s.dispatch(req.Action, plain)
	if failure != nil {
		return failure
	}

	replyNonce := nonce.Increment()
	if s.CorruptReplyNonce {
		replyNonce = nonce
	}
	payload["nonce"] = replyNonce.String()

	raw, err := json.Marshal(payload)
	if err != nil {
		return errorReply(req.Action, err.Error(), 1)
	}
	return &keepassxc.Envelope{
		Action:  req.Action,
		Message: channel.Seal(raw, replyNonce),
		Nonce:   replyNonce.String(),
	}
}

// dispatch must be called with s.mu held.
func (s *Server) dispatch(action keepassxc.Action, plain []byte) (map[string]any, *keepassxc.Envelope) {
	switch action {
	case keepassxc.ActionAssociate:
		var req keepassxc.AssociateRequest
		if err := json.Unmarshal(plain, &req); err != nil {
			return nil, errorReply(action, err.Error(), 1)
		}
		if s.DeclineAssociate {
			return nil, errorReply(action, "Association failed", keepassxc.CodeAssociationFailed)
		}
		id := s.AssociateID
		if id == "" {
			s.seq++
			id = fmt.Sprintf("database-%d", s.seq)
		}
		s.Associations[id] = req.IDKey
		return map[string]any{"id": id, "hash": "hash", "version": "2.7.9", "success": "true"}, nil

	case keepassxc.ActionTestAssociate:
		var req keepassxc.TestAssociateRequest
		if err := json.Unmarshal(plain, &req); err != nil {
			return nil, errorReply(action, err.Error(), 1)
		}
		if key, ok := s.Associations[req.ID]; !ok || key != req.Key {
			return nil, errorReply(action, "Association failed", keepassxc.CodeAssociationFailed)
		}
		return map[string]any{"id": req.ID, "hash": "hash", "version": "2.7.9", "success": "true"}, nil

	case keepassxc.ActionGetLogins:
		var req keepassxc.GetLoginsRequest
		if err := json.Unmarshal(plain, &req); err != nil {
			return nil, errorReply(action, err.Error(), 1)
		}
		entries := s.Entries[req.URL]
		if len(entries) == 0 {
			return nil, errorReply(action, "No logins found", keepassxc.CodeNoLoginsFound)
		}
		return map[string]any{"count": len(entries), "entries": entries, "success": "true"}, nil

	case keepassxc.ActionSetLogin:
		if s.SetLoginFail {
			return map[string]any{"success": "false", "error": "", "errorCode": "0"}, nil
		}
		errField := "success"
		if s.SetLoginError != "" {
			errField = s.SetLoginError
		}
		return map[string]any{"success": "true", "error": errField}, nil

	case keepassxc.ActionCreateNewGroup:
		var req keepassxc.CreateNewGroupRequest
		if err := json.Unmarshal(plain, &req); err != nil {
			return nil, errorReply(action, err.Error(), 1)
		}
		uuid, ok := s.Groups[req.GroupName]
		if !ok {
			s.seq++
			uuid = hex.EncodeToString([]byte(fmt.Sprintf("group-%08d", s.seq)))
			s.Groups[req.GroupName] = uuid
		}
		return map[string]any{"name": req.GroupName, "uuid": uuid}, nil
	}
	return nil, errorReply(action, "Action not recognized", 16)
}

func errorReply(action keepassxc.Action, msg string, code keepassxc.Code) *keepassxc.Envelope {
	return &keepassxc.Envelope{Action: action, Error: msg, ErrorCode: code}
}
