package ws

import (
	"log/slog"

	"codecollab/pkg/metrics"
)

// Sink is the outbound side of one connection. Send must not block;
// it returns false when the frame was dropped.
type Sink interface {
	Send(frame []byte) bool
}

// Relay fans frames out to room members. Delivery is fire-and-forget:
// a full or closed sink is skipped and its disconnect cleans up later.
// Not safe for concurrent use; the Hub serializes access.
type Relay struct {
	log   *slog.Logger
	index *Index
	sinks map[string]Sink // connID -> outbound queue
}

func NewRelay(log *slog.Logger, index *Index) *Relay {
	return &Relay{log: log, index: index, sinks: map[string]Sink{}}
}

// Attach makes connID addressable
func (r *Relay) Attach(connID string, s Sink) { r.sinks[connID] = s }

// Detach reports whether connID was attached
func (r *Relay) Detach(connID string) bool {
	_, ok := r.sinks[connID]
	delete(r.sinks, connID)
	return ok
}

// Attached reports whether connID is a live connection
func (r *Relay) Attached(connID string) bool {
	_, ok := r.sinks[connID]
	return ok
}

// EmitToRoom queues action+payload to every member of roomID except
// exclude (pass "" to reach everyone). Returns the number of frames queued.
func (r *Relay) EmitToRoom(roomID, action string, payload any, exclude string) int {
	members := r.index.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}
	frame, err := encodeFrame(action, payload)
	if err != nil {
		r.log.Error("relay.encode", "action", action, "err", err)
		return 0
	}

	sent := 0
	for _, id := range members {
		if id == exclude {
			continue
		}
		s := r.sinks[id]
		if s == nil || !s.Send(frame) {
			metrics.FramesDropped.Inc()
			r.log.Debug("relay.dropped", "room", roomID, "conn", id, "action", action)
			continue
		}
		sent++
	}
	metrics.FramesRelayed.WithLabelValues(action).Add(float64(sent))
	return sent
}

// EmitToConnection addresses exactly one connection through its self room
func (r *Relay) EmitToConnection(connID, action string, payload any) int {
	return r.EmitToRoom(connID, action, payload, "")
}
