package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/utils"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	User      string `json:"user"` // Local account performing the action.
	Operation string `json:"op"`   // Operation name.

	// Optional fields depending on operation.
	DatabaseID string `json:"database_id,omitempty"` // For configure/store.
	URL        string `json:"url,omitempty"`         // For store.
	Encrypted  bool   `json:"encrypted,omitempty"`   // For configure/caller.
	Profile    string `json:"profile,omitempty"`     // For encrypt.
	Count      int    `json:"count,omitempty"`       // Entries sealed, opened or migrated.
	Caller     string `json:"caller,omitempty"`      // For caller add.
}

// NewEntry returns an entry for op with the current user filled in.
func NewEntry(op string) Entry {
	entry := Entry{Operation: op}
	if user, err := utils.GetUsername(); err == nil {
		entry.User = user
	}
	return entry
}

// Log appends an entry to the audit log at path.
// Operations should not fail just because audit logging failed, so errors
// are dropped.
func Log(path string, entry Entry) {
	if path == "" {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = f.Write(append(data, '\n'))
}

// ReadEntries reads all entries from the audit log at path.
// Returns an empty slice if the log doesn't exist.
func ReadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(data), nil
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are skipped.
func ParseEntries(data []byte) []Entry {
	var entries []Entry
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
