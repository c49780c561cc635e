// Package session implements the Session Manager: rooms, participants,
// permissions, and invite tokens. It exclusively owns Sessions,
// Awareness state, and per-session CRDT document stores — no other
// component touches those maps directly.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortex-ide/core/internal/collab/awareness"
	"github.com/cortex-ide/core/internal/collab/crdt"
	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// Permission is one of Owner, Editor, Viewer, ordered by privilege.
type Permission string

const (
	PermissionOwner  Permission = "Owner"
	PermissionEditor Permission = "Editor"
	PermissionViewer Permission = "Viewer"
)

// colorPalette is the round-robin palette new joiners are assigned
// from, ten entries as the spec requires.
var colorPalette = [10]string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Participant is one connected user within a Session.
type Participant struct {
	UserID     string               `json:"user_id"`
	Name       string               `json:"name"`
	Color      string               `json:"color"`
	Permission Permission           `json:"permission"`
	Cursor     *awareness.Cursor    `json:"cursor,omitempty"`
	Selection  *awareness.Selection `json:"selection,omitempty"`
	JoinedAt   time.Time            `json:"joined_at"`
}

// InviteToken lets a holder join with a fixed permission, optionally
// expiring and optionally capped to a number of uses.
type InviteToken struct {
	Token      string     `json:"token"`
	Permission Permission `json:"permission"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	MaxUses    *int       `json:"max_uses,omitempty"`
	UsedCount  int        `json:"used_count"`
}

// Session (a "Room") is one collaborative editing session.
type Session struct {
	ID                string
	Name              string
	HostID            string
	CreatedAt         time.Time
	Participants      map[string]Participant
	DocumentIDs        []string
	DefaultPermission Permission
	InviteTokens      []InviteToken
}

// Info is the read-only projection returned to callers.
type Info struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	HostID            string                 `json:"host_id"`
	CreatedAt         time.Time              `json:"created_at"`
	Participants      map[string]Participant `json:"participants"`
	DefaultPermission Permission             `json:"default_permission"`
}

func (s *Session) info() Info {
	participants := make(map[string]Participant, len(s.Participants))
	for k, v := range s.Participants {
		participants[k] = v
	}
	return Info{
		ID:                s.ID,
		Name:              s.Name,
		HostID:            s.HostID,
		CreatedAt:         s.CreatedAt,
		Participants:      participants,
		DefaultPermission: s.DefaultPermission,
	}
}

type sessionState struct {
	session   *Session
	awareness *awareness.State
	documents *crdt.SharedDocumentStore
	nextColor int
}

// clientIDSeq hands out unique CRDT client identities to new sessions.
var clientIDSeq uint64

// Manager owns every live Session, its Awareness state, and its CRDT
// document store, all under one lock — contention here stays on a
// single narrow critical section per the concurrency model.
type Manager struct {
	mu                sync.Mutex
	sessions          map[string]*sessionState
	defaultPermission Permission
	now               func() time.Time
	tokenGen          func() string
}

// NewManager constructs an empty Manager. defaultPermission is applied
// to joiners who don't arrive via a fixed-permission invite token.
func NewManager(defaultPermission Permission) *Manager {
	return &Manager{
		sessions:          make(map[string]*sessionState),
		defaultPermission: defaultPermission,
		now:               time.Now,
		tokenGen:          func() string { return uuid.NewString() },
	}
}

// Create opens a new session; the host becomes its Owner.
func (m *Manager) Create(sessionID, name, hostID, hostName string) Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	clientID := nextClientID()
	st := &sessionState{
		session: &Session{
			ID:                sessionID,
			Name:              name,
			HostID:            hostID,
			CreatedAt:         m.now(),
			Participants:      make(map[string]Participant),
			DefaultPermission: m.defaultPermission,
		},
		awareness: awareness.NewState(),
		documents: crdt.NewSharedDocumentStore(clientID),
	}
	st.session.Participants[hostID] = Participant{
		UserID:     hostID,
		Name:       hostName,
		Color:      colorPalette[0],
		Permission: PermissionOwner,
		JoinedAt:   m.now(),
	}
	st.awareness.Set(hostID, awareness.Entry{UserName: hostName, UserColor: colorPalette[0]})
	st.nextColor = 1
	m.sessions[sessionID] = st
	return st.session.info()
}

func nextClientID() uint64 {
	clientIDSeq++
	return clientIDSeq
}

func (m *Manager) get(sessionID string) (*sessionState, error) {
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, coreerrors.NotFound("session %q does not exist", sessionID)
	}
	return st, nil
}

// Join adds userID to sessionID at the session's default permission,
// idempotent if the user is already present.
func (m *Manager) Join(sessionID, userID, userName string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return Info{}, err
	}
	if _, exists := st.session.Participants[userID]; exists {
		return st.session.info(), nil
	}
	m.addParticipant(st, userID, userName, st.session.DefaultPermission)
	return st.session.info(), nil
}

func (m *Manager) addParticipant(st *sessionState, userID, userName string, perm Permission) {
	color := colorPalette[st.nextColor%len(colorPalette)]
	st.nextColor++
	st.session.Participants[userID] = Participant{
		UserID:     userID,
		Name:       userName,
		Color:      color,
		Permission: perm,
		JoinedAt:   m.now(),
	}
	st.awareness.Set(userID, awareness.Entry{UserName: userName, UserColor: color})
}

// JoinWithToken verifies and atomically consumes a generated invite.
func (m *Manager) JoinWithToken(token, userID, userName string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.sessions {
		for i, inv := range st.session.InviteTokens {
			if inv.Token != token {
				continue
			}
			if inv.ExpiresAt != nil && m.now().After(*inv.ExpiresAt) {
				return Info{}, coreerrors.Conflict("invite token has expired")
			}
			if inv.MaxUses != nil && inv.UsedCount >= *inv.MaxUses {
				return Info{}, coreerrors.Conflict("invite token has no uses remaining")
			}
			st.session.InviteTokens[i].UsedCount++
			if _, exists := st.session.Participants[userID]; !exists {
				m.addParticipant(st, userID, userName, inv.Permission)
			}
			return st.session.info(), nil
		}
	}
	return Info{}, coreerrors.NotFound("invite token not recognized")
}

// Leave removes userID from sessionID, destroying the session (and its
// CRDT store, awareness) if the set of participants becomes empty. The
// returned bool reports whether this Leave emptied the session.
func (m *Manager) Leave(sessionID, userID string) (lastOne bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return false, err
	}
	delete(st.session.Participants, userID)
	st.awareness.Remove(userID)
	if len(st.session.Participants) == 0 {
		delete(m.sessions, sessionID)
		return true, nil
	}
	return false, nil
}

// UpdateCursor propagates a cursor update into both the participant
// record and awareness.
func (m *Manager) UpdateCursor(sessionID, userID string, cursor awareness.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return err
	}
	p, ok := st.session.Participants[userID]
	if !ok {
		return coreerrors.NotFound("participant %q not in session %q", userID, sessionID)
	}
	p.Cursor = &cursor
	st.session.Participants[userID] = p
	st.awareness.UpdateCursor(userID, cursor)
	return nil
}

// UpdateSelection propagates a selection update into both the
// participant record and awareness.
func (m *Manager) UpdateSelection(sessionID, userID string, sel awareness.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return err
	}
	p, ok := st.session.Participants[userID]
	if !ok {
		return coreerrors.NotFound("participant %q not in session %q", userID, sessionID)
	}
	p.Selection = &sel
	st.session.Participants[userID] = p
	st.awareness.UpdateSelection(userID, sel)
	return nil
}

// GenerateInvite mints a fixed-permission invite token for sessionID.
func (m *Manager) GenerateInvite(sessionID string, permission Permission, expiresIn *time.Duration, maxUses *int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return "", err
	}
	token := m.tokenGen()
	inv := InviteToken{Token: token, Permission: permission, MaxUses: maxUses}
	if expiresIn != nil {
		t := m.now().Add(*expiresIn)
		inv.ExpiresAt = &t
	}
	st.session.InviteTokens = append(st.session.InviteTokens, inv)
	return token, nil
}

// RevokeInvite removes token from sessionID's invite list.
func (m *Manager) RevokeInvite(sessionID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return err
	}
	filtered := st.session.InviteTokens[:0]
	for _, inv := range st.session.InviteTokens {
		if inv.Token != token {
			filtered = append(filtered, inv)
		}
	}
	st.session.InviteTokens = filtered
	return nil
}

// Documents returns the CRDT document store owned by sessionID.
func (m *Manager) Documents(sessionID string) (*crdt.SharedDocumentStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return st.documents, nil
}

// Awareness returns the awareness state owned by sessionID.
func (m *Manager) Awareness(sessionID string) (*awareness.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return st.awareness, nil
}

// Info returns a read-only snapshot of sessionID.
func (m *Manager) Info(sessionID string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.get(sessionID)
	if err != nil {
		return Info{}, err
	}
	return st.session.info(), nil
}
