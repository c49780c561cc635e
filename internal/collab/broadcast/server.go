// Package broadcast runs the collaboration WebSocket server: one
// accept loop, one goroutine per peer, and room-scoped fan-out where
// a slow peer's socket can never stall the rest of the session.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cortex-ide/core/internal/collab/session"
	"github.com/cortex-ide/core/internal/logging"
	"github.com/cortex-ide/core/internal/tracing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Peer is one accepted connection's state: the identity it has
// asserted (if any) via JoinRoom, and its own send-side mutex so
// broadcast fan-out never races a peer's own writes.
type Peer struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	userID    string
	sessionID string
}

func newPeer(conn *websocket.Conn) *Peer {
	return &Peer{conn: conn}
}

// Send writes env to this peer's socket under its own lock.
func (p *Peer) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// SyncProvider computes diffs/full state for SyncRequest handling —
// implemented by the CRDT document store behind the Session Manager.
type SyncProvider interface {
	EncodeState(fileID string) ([]byte, error)
	EncodeDiff(fileID string, remoteStateVector []byte) ([]byte, error)
}

// Server is the collaboration WebSocket server.
type Server struct {
	sessions *session.Manager
	log      logging.Logger

	mu    sync.Mutex
	peers map[*Peer]struct{}
	// byRoom tracks, per session_id, the set of peers that have
	// asserted membership via JoinRoom.
	byRoom map[string]map[*Peer]struct{}

	// onFanout, if set, is notified once per fanOut call with the
	// message type — the host process wires this to its own metrics
	// collector rather than this package importing one directly.
	onFanout func(messageType string)
}

// OnFanout registers a callback invoked once per fan-out with the
// envelope's message type. Pass nil to disable.
func (s *Server) OnFanout(fn func(messageType string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFanout = fn
}

// NewServer wires the broadcast server to the Session Manager that
// owns sessions, awareness, and CRDT document stores.
func NewServer(sessions *session.Manager, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		sessions: sessions,
		log:      log,
		peers:    make(map[*Peer]struct{}),
		byRoom:   make(map[string]map[*Peer]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs the peer's
// read loop until disconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}
	peer := newPeer(conn)
	s.addPeer(peer)
	defer s.handleDisconnect(peer)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = peer.Send(errorEnvelope("malformed message"))
			continue
		}
		s.handleMessage(peer, env)
	}
}

func errorEnvelope(message string) Envelope {
	env, _ := Encode(TypeError, ErrorPayload{Message: message})
	return env
}

func (s *Server) addPeer(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p] = struct{}{}
}

func (s *Server) handleDisconnect(p *Peer) {
	s.mu.Lock()
	sessionID := p.sessionID
	userID := p.userID
	delete(s.peers, p)
	if room, ok := s.byRoom[sessionID]; ok {
		delete(room, p)
		if len(room) == 0 {
			delete(s.byRoom, sessionID)
		}
	}
	s.mu.Unlock()

	if sessionID != "" && userID != "" {
		s.broadcastToRoom(sessionID, nil, TypeUserLeft, UserPresencePayload{UserID: userID})
	}
}

func (s *Server) handleMessage(p *Peer, env Envelope) {
	switch env.Type {
	case TypeJoinRoom:
		s.handleJoinRoom(p, env)
	case TypeLeaveRoom:
		s.handleLeaveRoom(p, env)
	case TypeCursorUpdate:
		s.forwardToRoom(p, env, TypeCursorUpdate)
	case TypeSelectionUpdate:
		s.forwardToRoom(p, env, TypeSelectionUpdate)
	case TypeDocumentSync:
		s.forwardToRoom(p, env, TypeDocumentSync)
	case TypeAwarenessUpdate:
		s.forwardToRoom(p, env, TypeAwarenessUpdate)
	case TypeChatMessage:
		s.forwardToRoom(p, env, TypeChatMessage)
	case TypeSyncRequest:
		s.handleSyncRequest(p, env)
	case TypePing:
		pong, _ := Encode(TypePong, struct{}{})
		_ = p.Send(pong)
	default:
		_ = p.Send(errorEnvelope("unrecognized message type"))
	}
}

func (s *Server) handleJoinRoom(p *Peer, env Envelope) {
	var payload JoinRoomPayload
	if err := Decode(env, &payload); err != nil {
		_ = p.Send(errorEnvelope("malformed JoinRoom payload"))
		return
	}
	s.mu.Lock()
	p.sessionID = payload.SessionID
	p.userID = payload.User.UserID
	room, ok := s.byRoom[payload.SessionID]
	if !ok {
		room = make(map[*Peer]struct{})
		s.byRoom[payload.SessionID] = room
	}
	room[p] = struct{}{}
	s.mu.Unlock()

	s.broadcastToRoom(payload.SessionID, p, TypeUserJoined, UserPresencePayload{
		UserID: payload.User.UserID,
		Name:   payload.User.Name,
	})
}

func (s *Server) handleLeaveRoom(p *Peer, env Envelope) {
	var payload LeaveRoomPayload
	if err := Decode(env, &payload); err != nil {
		_ = p.Send(errorEnvelope("malformed LeaveRoom payload"))
		return
	}
	s.mu.Lock()
	if room, ok := s.byRoom[payload.SessionID]; ok {
		delete(room, p)
		if len(room) == 0 {
			delete(s.byRoom, payload.SessionID)
		}
	}
	s.mu.Unlock()
	s.broadcastToRoom(payload.SessionID, p, TypeUserLeft, UserPresencePayload{UserID: payload.UserID})
}

// forwardToRoom relays env verbatim to every other peer in p's session.
func (s *Server) forwardToRoom(p *Peer, env Envelope, msgType MessageType) {
	if p.sessionID == "" {
		_ = p.Send(errorEnvelope("not joined to a session"))
		return
	}
	s.fanOut(p.sessionID, p, env)
}

func (s *Server) broadcastToRoom(sessionID string, exclude *Peer, msgType MessageType, payload any) {
	env, err := Encode(msgType, payload)
	if err != nil {
		s.log.Warn("failed to encode %s broadcast: %v", msgType, err)
		return
	}
	s.fanOut(sessionID, exclude, env)
}

// fanOut sends env to every peer in sessionID except exclude. Each
// send runs independently (and concurrently) so one slow peer's
// socket cannot stall the others — this mirrors the spec's explicit
// "independent sends" requirement.
func (s *Server) fanOut(sessionID string, exclude *Peer, env Envelope) {
	_, span := tracing.StartBroadcastSpan(context.Background(), sessionID, string(env.Type))
	defer tracing.End(span, nil)

	s.mu.Lock()
	room := s.byRoom[sessionID]
	targets := make([]*Peer, 0, len(room))
	for peer := range room {
		if peer != exclude {
			targets = append(targets, peer)
		}
	}
	hook := s.onFanout
	s.mu.Unlock()

	if hook != nil {
		hook(string(env.Type))
	}

	var wg sync.WaitGroup
	for _, peer := range targets {
		wg.Add(1)
		go func(peer *Peer) {
			defer wg.Done()
			if err := peer.Send(env); err != nil {
				s.log.Warn("failed to send to peer %s: %v", peer.userID, err)
			}
		}(peer)
	}
	wg.Wait()
}

// handleSyncRequest computes a targeted diff (or full state, if no
// state vector was supplied) via the session's CRDT document store
// and replies DocumentSync directly to the requester.
func (s *Server) handleSyncRequest(p *Peer, env Envelope) {
	var payload SyncRequestPayload
	if err := Decode(env, &payload); err != nil {
		_ = p.Send(errorEnvelope("malformed SyncRequest payload"))
		return
	}
	docs, err := s.sessions.Documents(p.sessionID)
	if err != nil {
		_ = p.Send(errorEnvelope("unknown session"))
		return
	}
	var update []byte
	if len(payload.StateVector) == 0 {
		update, err = docs.EncodeState(payload.FileID)
	} else {
		update, err = docs.EncodeDiff(payload.FileID, payload.StateVector)
	}
	if err != nil {
		_ = p.Send(errorEnvelope("sync failed: " + err.Error()))
		return
	}
	resp, _ := Encode(TypeDocumentSync, DocumentSyncPayload{FileID: payload.FileID, Update: update})
	_ = p.Send(resp)
}

// PeerCount reports the number of currently connected peers, for
// diagnostics/metrics.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// pingInterval is how often a production deployment should drive
// keepalive pings; the server itself does not schedule them — the
// host process owns that loop so it can share a ticker across peers.
const pingInterval = 30 * time.Second

// PingInterval exposes the recommended keepalive cadence to callers
// assembling the host harness.
func PingInterval() time.Duration { return pingInterval }
