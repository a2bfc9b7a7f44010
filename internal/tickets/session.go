package tickets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/otto/internal/util"
)

const sessionFile = "project-lead.json"

type storedSession struct {
	SessionID string `json:"sessionId"`
}

// SessionStore persists the project lead's conversation id so consecutive
// ticket commands continue one conversation.
type SessionStore struct {
	path string
}

// NewSessionStore returns a store under sessionsDir.
func NewSessionStore(sessionsDir string) *SessionStore {
	return &SessionStore{path: filepath.Join(sessionsDir, sessionFile)}
}

// Path returns the session file path.
func (s *SessionStore) Path() string { return s.path }

// Load returns the stored session id, or "" when none is stored. A file
// that does not hold a usable id counts as none.
func (s *SessionStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read project lead session: %w", err)
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", nil
	}
	return strings.TrimSpace(stored.SessionID), nil
}

// Save stores id.
func (s *SessionStore) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return util.WriteJSONAtomic(s.path, storedSession{SessionID: id})
}

// Clear removes the stored session.
func (s *SessionStore) Clear() error {
	return util.RemoveIfExists(s.path)
}
