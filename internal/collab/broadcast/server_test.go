package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cortex-ide/core/internal/collab/session"
)

func dialTestServer(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(srv)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("dial failed: %v", err)
	}
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return env
}

func TestJoinRoomBroadcastsUserJoinedToExistingPeers(t *testing.T) {
	mgr := session.NewManager(session.PermissionEditor)
	mgr.Create("s1", "room", "host", "Ada")
	srv := NewServer(mgr, nil)

	connA, closeA := dialTestServer(t, srv)
	defer closeA()
	connB, closeB := dialTestServer(t, srv)
	defer closeB()

	joinA, _ := Encode(TypeJoinRoom, JoinRoomPayload{SessionID: "s1", User: UserRef{UserID: "a", Name: "Ada"}})
	if err := connA.WriteJSON(joinA); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	joinB, _ := Encode(TypeJoinRoom, JoinRoomPayload{SessionID: "s1", User: UserRef{UserID: "b", Name: "Grace"}})
	if err := connB.WriteJSON(joinB); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readEnvelope(t, connA)
	if env.Type != TypeUserJoined {
		t.Fatalf("expected UserJoined, got %v", env.Type)
	}
	var payload UserPresencePayload
	if err := Decode(env, &payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.UserID != "b" {
		t.Fatalf("expected broadcast about peer b, got %q", payload.UserID)
	}
}

func TestCursorUpdateForwardsToOtherPeersOnly(t *testing.T) {
	mgr := session.NewManager(session.PermissionEditor)
	mgr.Create("s1", "room", "host", "Ada")
	srv := NewServer(mgr, nil)

	connA, closeA := dialTestServer(t, srv)
	defer closeA()
	connB, closeB := dialTestServer(t, srv)
	defer closeB()

	for _, c := range []*websocket.Conn{connA, connB} {
		join, _ := Encode(TypeJoinRoom, JoinRoomPayload{SessionID: "s1", User: UserRef{UserID: "x"}})
		c.WriteJSON(join)
	}
	time.Sleep(50 * time.Millisecond)
	// drain the UserJoined broadcasts each connection may have queued
	connA.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var drain Envelope
	connA.ReadJSON(&drain)

	cursorMsg, _ := Encode(TypeCursorUpdate, CursorUpdatePayload{UserID: "b"})
	if err := connB.WriteJSON(cursorMsg); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readEnvelope(t, connA)
	if env.Type != TypeCursorUpdate {
		t.Fatalf("expected CursorUpdate forwarded, got %v", env.Type)
	}
}

func TestUnrecognizedMessageTypeRepliesWithError(t *testing.T) {
	mgr := session.NewManager(session.PermissionEditor)
	srv := NewServer(mgr, nil)
	conn, closeFn := dialTestServer(t, srv)
	defer closeFn()

	bogus := Envelope{Type: "NotARealType"}
	if err := conn.WriteJSON(bogus); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != TypeError {
		t.Fatalf("expected Error reply, got %v", env.Type)
	}
}

func TestPingRepliesWithPong(t *testing.T) {
	mgr := session.NewManager(session.PermissionEditor)
	srv := NewServer(mgr, nil)
	conn, closeFn := dialTestServer(t, srv)
	defer closeFn()

	ping, _ := Encode(TypePing, struct{}{})
	conn.WriteJSON(ping)
	env := readEnvelope(t, conn)
	if env.Type != TypePong {
		t.Fatalf("expected Pong, got %v", env.Type)
	}
}

func TestSyncRequestWithoutStateVectorReturnsFullState(t *testing.T) {
	mgr := session.NewManager(session.PermissionEditor)
	mgr.Create("s1", "room", "host", "Ada")
	docs, _ := mgr.Documents("s1")
	docs.Insert("f1", 0, "hello")

	srv := NewServer(mgr, nil)
	conn, closeFn := dialTestServer(t, srv)
	defer closeFn()

	join, _ := Encode(TypeJoinRoom, JoinRoomPayload{SessionID: "s1", User: UserRef{UserID: "a"}})
	conn.WriteJSON(join)

	req, _ := Encode(TypeSyncRequest, SyncRequestPayload{FileID: "f1"})
	conn.WriteJSON(req)

	env := readEnvelope(t, conn)
	if env.Type != TypeDocumentSync {
		t.Fatalf("expected DocumentSync reply, got %v", env.Type)
	}
	var payload DocumentSyncPayload
	if err := Decode(env, &payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(payload.Update) == 0 {
		t.Fatal("expected non-empty full-state update")
	}
}
