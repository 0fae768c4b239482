// Package bot implements the conversation core: the per-chat session state
// machine, the bounded memory window, the dispatcher that sequences a turn,
// and the scheduled maintenance around them.
package bot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the menu position of a conversation.
type State string

const (
	StateIdle     State = "IDLE"
	StateMainMenu State = "MAIN_MENU"
	StateSettings State = "SETTINGS_MENU"
)

// valid reports whether s is a known state.
func (s State) valid() bool {
	switch s {
	case StateIdle, StateMainMenu, StateSettings:
		return true
	}
	return false
}

// Session is the durable per-conversation record.
type Session struct {
	State    State `json:"state"`
	LastSeen int64 `json:"lastSeen"` // epoch milliseconds
}

// LastSeenTime returns LastSeen as a time.Time.
func (s Session) LastSeenTime() time.Time {
	return time.UnixMilli(s.LastSeen)
}

// SessionStore keeps the session map in memory and mirrors every mutation
// to a single JSON file. A missing or unparsable file is a cold start, never
// an error. Write failures are logged and the in-memory map stays
// authoritative until the next successful write.
type SessionStore struct {
	path     string
	sessions map[string]Session
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewSessionStore creates a store backed by the given file and loads any
// existing sessions from it.
func NewSessionStore(path string, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SessionStore{
		path:     path,
		sessions: make(map[string]Session),
		logger:   logger.With("component", "sessions"),
	}
	s.load()
	return s
}

// load reads the session file. Corrupt or missing data yields an empty map.
func (s *SessionStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("session file unreadable, starting cold", "path", s.path, "error", err)
		}
		return
	}

	var loaded map[string]Session
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("session file corrupt, starting cold", "path", s.path, "error", err)
		return
	}

	// Repair unknown states to IDLE so the map never holds a value
	// outside the enum.
	for id, sess := range loaded {
		if !sess.State.valid() {
			sess.State = StateIdle
			loaded[id] = sess
		}
	}
	s.sessions = loaded
	s.logger.Info("sessions loaded", "count", len(loaded))
}

// Get returns the session for id, defaulting to an IDLE session stamped with
// now when none exists. The default is not persisted until the first Upsert.
func (s *SessionStore) Get(id string, now time.Time) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		if !sess.State.valid() {
			sess.State = StateIdle
		}
		return sess
	}
	return Session{State: StateIdle, LastSeen: now.UnixMilli()}
}

// Upsert sets the session's state and last-seen time, persists the whole
// map, and returns the updated record.
func (s *SessionStore) Upsert(id string, state State, now time.Time) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !state.valid() {
		state = StateIdle
	}
	sess := Session{State: state, LastSeen: now.UnixMilli()}
	s.sessions[id] = sess
	s.saveLocked()
	return sess
}

// Len returns the number of tracked sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns a copy of the session map.
func (s *SessionStore) Snapshot() map[string]Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Session, len(s.sessions))
	for id, sess := range s.sessions {
		out[id] = sess
	}
	return out
}

// Clear drops every session and persists the empty map. Used by the
// maintenance sweep when the store grows past its threshold.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]Session)
	s.saveLocked()
}

// saveLocked rewrites the session file wholesale. Caller holds s.mu.
// The write goes through a temp file and rename so readers never observe a
// partial file.
func (s *SessionStore) saveLocked() {
	if err := s.writeFile(); err != nil {
		s.logger.Error("session save failed, in-memory state kept", "path", s.path, "error", err)
	}
}

func (s *SessionStore) writeFile() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}
