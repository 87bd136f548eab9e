package ws

import (
	"encoding/json"
	"errors"
)

// Wire action names, shared with the browser client.
const (
	ActionConnected    = "connected"
	ActionJoin         = "join"
	ActionJoined       = "joined"
	ActionCodeChange   = "code-change"
	ActionSyncCode     = "sync-code"
	ActionDisconnected = "disconnected"
	ActionError        = "error"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrEmptyRoom         = errors.New("roomId required")
	ErrAlreadyJoined     = errors.New("connection already joined a room")
	ErrReservedRoom      = errors.New("roomId is reserved")
	ErrNotJoined         = errors.New("connection is not a member of that room")
	ErrBadFrame          = errors.New("malformed frame")
	ErrUnknownAction     = errors.New("unknown action")
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

type Client struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type JoinedPayload struct {
	Clients  []Client `json:"clients"`
	Username string   `json:"username"`
	SocketID string   `json:"socketId"`
}

type CodeChangePayload struct {
	RoomID string `json:"roomId,omitempty"`
	Code   string `json:"code"`
}

type SyncCodePayload struct {
	SocketID string `json:"socketId"`
	Code     string `json:"code"`
}

type DisconnectedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type ConnectedPayload struct {
	SocketID string `json:"socketId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeFrame marshals an outbound frame once so fan-out can share the bytes
func encodeFrame(action string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Action: action, Payload: payload})
}
