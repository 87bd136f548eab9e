package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// recorder is an in-memory Sink
type recorder struct {
	frames [][]byte
	full   bool
}

func (r *recorder) Send(b []byte) bool {
	if r.full {
		return false
	}
	r.frames = append(r.frames, b)
	return true
}

// take decodes and clears everything received so far
func (r *recorder) take(t *testing.T) []Envelope {
	t.Helper()
	out := make([]Envelope, 0, len(r.frames))
	for _, b := range r.frames {
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("bad frame %s: %v", b, err)
		}
		out = append(out, env)
	}
	r.frames = nil
	return out
}

func payloadAs[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Action, err)
	}
	return v
}

func socketIDs(cs []Client) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.SocketID)
	}
	return ids
}
