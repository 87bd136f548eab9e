package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"codecollab/pkg/metrics"
)

// Hub runs the room protocol: join, edit, sync and disconnect.
// A single mutex serializes every handler, fan-out included, so frames
// for a room are queued in the order the handlers ran.
type Hub struct {
	log     *slog.Logger
	origins []string // websocket origin patterns, host[:port]
	timing  timing

	mu       sync.Mutex
	registry *Registry
	index    *Index
	relay    *Relay
}

// NewHub sets up an empty hub
func NewHub(logger *slog.Logger, originPatterns []string) *Hub {
	index := NewIndex()
	return &Hub{
		log:      logger,
		origins:  originPatterns,
		timing:   defaultTiming,
		registry: NewRegistry(),
		index:    index,
		relay:    NewRelay(logger, index),
	}
}

// Connect makes a new connection addressable through its self room and
// tells it its id. The connection is not in any room yet.
func (h *Hub) Connect(connID string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.relay.Attached(connID) {
		h.log.Warn("ws.connect.duplicate", "conn", connID)
		return
	}
	h.relay.Attach(connID, s)
	h.index.Join(connID, connID)
	metrics.Connections.Inc()
	h.relay.EmitToConnection(connID, ActionConnected, ConnectedPayload{SocketID: connID})
	h.log.Debug("ws.connect", "conn", connID)
}

// Join enters roomID as username and sends the updated roster to every
// member, the joiner included.
func (h *Hub) Join(connID, roomID, username string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case !h.relay.Attached(connID):
		return ErrUnknownConnection
	case roomID == "":
		return ErrEmptyRoom
	case h.roomOf(connID) != "":
		return ErrAlreadyJoined
	case h.relay.Attached(roomID):
		return ErrReservedRoom
	}

	h.registry.Register(connID, username)
	members := h.index.Join(roomID, connID)
	if len(members) == 1 {
		metrics.Rooms.Inc()
	}
	h.relay.EmitToRoom(roomID, ActionJoined, JoinedPayload{
		Clients:  h.clients(members),
		Username: username,
		SocketID: connID,
	}, "")
	h.log.Info("ws.join", "room", roomID, "conn", connID, "user", username, "members", len(members))
	return nil
}

// Edit relays code to the other members of roomID. The sender is never echoed.
func (h *Hub) Edit(connID, roomID, code string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomID == "" || h.roomOf(connID) != roomID {
		return ErrNotJoined
	}
	h.relay.EmitToRoom(roomID, ActionCodeChange, CodeChangePayload{Code: code}, connID)
	return nil
}

// Sync sends the sender's buffer to one member of the sender's room.
// Several members may answer the same joiner; the last applied wins client side.
func (h *Hub) Sync(connID, targetID, code string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.roomOf(connID)
	if room == "" || !h.index.Has(room, targetID) {
		return ErrNotJoined
	}
	if targetID == connID {
		// the joiner answering its own roster must not blank the buffer it is about to receive
		return nil
	}
	h.relay.EmitToConnection(targetID, ActionCodeChange, CodeChangePayload{Code: code})
	return nil
}

// Disconnect tells every room the connection was in that it left, then
// drops all state for it. Safe to call more than once.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// capture before anything is removed
	rooms := h.index.RoomsOf(connID)
	username, _ := h.registry.Lookup(connID)

	for _, room := range rooms {
		h.relay.EmitToRoom(room, ActionDisconnected, DisconnectedPayload{
			SocketID: connID,
			Username: username,
		}, connID)
	}
	for _, room := range rooms {
		if h.index.Leave(room, connID) && room != connID {
			metrics.Rooms.Dec()
		}
		if room != connID {
			h.log.Info("ws.leave", "room", room, "conn", connID, "user", username)
		}
	}
	h.registry.Unregister(connID)
	if h.relay.Detach(connID) {
		metrics.Connections.Dec()
	}
}

// Members returns the roster of roomID in join order
func (h *Hub) Members(roomID string) []Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.relay.Attached(roomID) {
		return []Client{}
	}
	return h.clients(h.index.MembersOf(roomID))
}

// Dispatch decodes one inbound frame and runs the matching handler
func (h *Hub) Dispatch(connID string, frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	switch env.Action {
	case ActionJoin:
		var p JoinPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		return h.Join(connID, p.RoomID, p.Username)
	case ActionCodeChange:
		var p CodeChangePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		return h.Edit(connID, p.RoomID, p.Code)
	case ActionSyncCode:
		var p SyncCodePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		return h.Sync(connID, p.SocketID, p.Code)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

// Reject reports a protocol error back to the offending connection only
func (h *Hub) Reject(connID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay.EmitToConnection(connID, ActionError, ErrorPayload{Message: err.Error()})
}

// ServeWS handles one /ws connection for its whole life
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := Accept(w, r, h.origins)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := uuid.NewString()
	c := newConn(conn, h.timing)
	h.Connect(id, c)

	// Outbound writer; a failed write or ping ends the read loop too
	go func() {
		c.WriteLoop(ctx)
		cancel()
	}()

	for {
		payload, ok := c.Read(ctx)
		if !ok {
			break
		}
		if err := h.Dispatch(id, payload); err != nil {
			if IsProtocolError(err) {
				h.log.Warn("ws.rejected", "conn", id, "err", err)
			} else {
				h.log.Error("ws.dispatch", "conn", id, "err", err)
			}
			h.Reject(id, err)
		}
	}

	h.Disconnect(id)
	_ = c.Close()
	h.log.Debug("ws.closed", "conn", id)
}

// roomOf returns the named room a connection joined, "" when unjoined
func (h *Hub) roomOf(connID string) string {
	if _, ok := h.registry.Lookup(connID); !ok {
		return ""
	}
	for _, room := range h.index.RoomsOf(connID) {
		if room != connID {
			return room
		}
	}
	return ""
}

// clients resolves ids to roster entries
func (h *Hub) clients(ids []string) []Client {
	out := make([]Client, 0, len(ids))
	for _, id := range ids {
		name, ok := h.registry.Lookup(id)
		if !ok {
			h.log.Error("ws.roster.unregistered", "conn", id)
		}
		out = append(out, Client{SocketID: id, Username: name})
	}
	return out
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrBadFrame)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return nil
}

// IsProtocolError reports whether err came from client misuse rather than the server.
// ErrUnknownConnection is not one: a live socket always has a registered id.
func IsProtocolError(err error) bool {
	for _, target := range []error{
		ErrEmptyRoom, ErrAlreadyJoined, ErrReservedRoom,
		ErrNotJoined, ErrBadFrame, ErrUnknownAction,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
