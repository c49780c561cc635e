package broadcast

import (
	"encoding/json"

	"github.com/cortex-ide/core/internal/collab/awareness"
)

// MessageType tags the wire message's variant; every payload below it
// is UTF-8 JSON, with binary CRDT updates carried base64-inside-string
// (Go's encoding/json already base64-encodes []byte fields).
type MessageType string

const (
	TypeJoinRoom        MessageType = "JoinRoom"
	TypeLeaveRoom        MessageType = "LeaveRoom"
	TypeUserJoined       MessageType = "UserJoined"
	TypeUserLeft         MessageType = "UserLeft"
	TypeCursorUpdate     MessageType = "CursorUpdate"
	TypeSelectionUpdate  MessageType = "SelectionUpdate"
	TypeDocumentSync     MessageType = "DocumentSync"
	TypeSyncRequest      MessageType = "SyncRequest"
	TypeAwarenessUpdate  MessageType = "AwarenessUpdate"
	TypeChatMessage      MessageType = "ChatMessage"
	TypePing             MessageType = "Ping"
	TypePong             MessageType = "Pong"
	TypeError            MessageType = "Error"
)

// Envelope is the outer tagged-union frame; Payload is re-decoded into
// the concrete struct matching Type.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UserRef identifies a peer for presence messages.
type UserRef struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

type JoinRoomPayload struct {
	SessionID string  `json:"session_id"`
	User      UserRef `json:"user"`
}

type LeaveRoomPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type UserPresencePayload struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

type CursorUpdatePayload struct {
	UserID string           `json:"user_id"`
	Cursor awareness.Cursor `json:"cursor"`
}

type SelectionUpdatePayload struct {
	UserID    string              `json:"user_id"`
	Selection awareness.Selection `json:"selection"`
}

type DocumentSyncPayload struct {
	FileID string `json:"file_id"`
	Update []byte `json:"update"`
}

type SyncRequestPayload struct {
	FileID       string `json:"file_id"`
	StateVector  []byte `json:"state_vector"`
}

type AwarenessUpdatePayload struct {
	States map[string]awareness.Entry `json:"states"`
}

type ChatMessagePayload struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode builds an Envelope carrying payload, tagged as msgType.
func Encode(msgType MessageType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// Decode unmarshals env.Payload into dst.
func Decode(env Envelope, dst any) error {
	return json.Unmarshal(env.Payload, dst)
}
