// Package awareness tracks per-session ephemeral peer presence —
// cursor, selection, and active file — with no retention: an entry
// exists only as long as its peer is connected.
package awareness

import (
	"sync"
	"time"
)

// Cursor is a single-position caret location.
type Cursor struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Selection spans from Anchor to Head, either of which may precede the
// other depending on selection direction.
type Selection struct {
	Anchor Cursor `json:"anchor"`
	Head   Cursor `json:"head"`
}

// Entry is one user's ephemeral presence within a session.
type Entry struct {
	UserID     string     `json:"user_id"`
	UserName   string     `json:"user_name"`
	UserColor  string     `json:"user_color"`
	Cursor     *Cursor    `json:"cursor,omitempty"`
	Selection  *Selection `json:"selection,omitempty"`
	ActiveFile string     `json:"active_file,omitempty"`
	Timestamp  int64      `json:"timestamp"`
}

// now is a seam for deterministic tests.
var now = func() int64 { return time.Now().UnixMilli() }

// State is a session's user_id -> Entry map.
type State struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewState creates an empty awareness state for one session.
func NewState() *State {
	return &State{entries: make(map[string]Entry)}
}

// Set inserts or replaces entry for userID, stamping Timestamp.
func (s *State) Set(userID string, entry Entry) {
	entry.UserID = userID
	entry.Timestamp = now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = entry
}

// UpdateCursor updates only the cursor field of an existing entry,
// stamping Timestamp. No-op if the user has no entry yet.
func (s *State) UpdateCursor(userID string, cursor Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return
	}
	e.Cursor = &cursor
	e.Timestamp = now()
	s.entries[userID] = e
}

// UpdateSelection updates only the selection field of an existing
// entry, stamping Timestamp. No-op if the user has no entry yet.
func (s *State) UpdateSelection(userID string, sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return
	}
	e.Selection = &sel
	e.Timestamp = now()
	s.entries[userID] = e
}

// UpdateActiveFile updates only the active-file field of an existing
// entry, stamping Timestamp. No-op if the user has no entry yet.
func (s *State) UpdateActiveFile(userID, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return
	}
	e.ActiveFile = file
	e.Timestamp = now()
	s.entries[userID] = e
}

// Remove deletes userID's entry, e.g. on disconnect.
func (s *State) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Snapshot returns a copy of the current user_id -> Entry map.
func (s *State) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
