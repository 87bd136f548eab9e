package ws

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"
)

// connected returns a hub with the given connections attached and their
// "connected" frames already drained
func connected(t *testing.T, ids ...string) (*Hub, map[string]*recorder) {
	t.Helper()
	h := NewHub(discardLogger(), nil)
	sinks := map[string]*recorder{}
	for _, id := range ids {
		rec := &recorder{}
		sinks[id] = rec
		h.Connect(id, rec)
		got := rec.take(t)
		if len(got) != 1 || got[0].Action != ActionConnected {
			t.Fatalf("%s: want a single connected frame, got %+v", id, got)
		}
		if p := payloadAs[ConnectedPayload](t, got[0]); p.SocketID != id {
			t.Fatalf("%s: connected socketId = %q", id, p.SocketID)
		}
	}
	return h, sinks
}

func mustJoin(t *testing.T, h *Hub, id, room, user string) {
	t.Helper()
	if err := h.Join(id, room, user); err != nil {
		t.Fatalf("Join(%s): %v", id, err)
	}
}

func TestJoinBroadcastsRosterToAll(t *testing.T) {
	h, s := connected(t, "A", "B")

	mustJoin(t, h, "A", "r1", "alice")
	got := s["A"].take(t)
	if len(got) != 1 || got[0].Action != ActionJoined {
		t.Fatalf("A after own join: %+v", got)
	}
	p := payloadAs[JoinedPayload](t, got[0])
	if ids := socketIDs(p.Clients); !slices.Equal(ids, []string{"A"}) {
		t.Fatalf("roster = %v, want [A]", ids)
	}
	if p.Username != "alice" || p.SocketID != "A" {
		t.Fatalf("joined payload = %+v", p)
	}

	mustJoin(t, h, "B", "r1", "bob")
	for _, id := range []string{"A", "B"} {
		got := s[id].take(t)
		if len(got) != 1 || got[0].Action != ActionJoined {
			t.Fatalf("%s after B joins: %+v", id, got)
		}
		p := payloadAs[JoinedPayload](t, got[0])
		want := []Client{{SocketID: "A", Username: "alice"}, {SocketID: "B", Username: "bob"}}
		if !slices.Equal(p.Clients, want) {
			t.Fatalf("%s roster = %+v, want %+v", id, p.Clients, want)
		}
		if p.SocketID != "B" || p.Username != "bob" {
			t.Fatalf("%s joined payload = %+v", id, p)
		}
	}
}

func TestSyncReachesOnlyTarget(t *testing.T) {
	h, s := connected(t, "A", "B", "C")
	mustJoin(t, h, "A", "r1", "alice")
	mustJoin(t, h, "B", "r1", "bob")
	mustJoin(t, h, "C", "r1", "carol")
	for _, rec := range s {
		rec.take(t)
	}

	if err := h.Sync("A", "B", "print(1)"); err != nil {
		t.Fatal(err)
	}
	got := s["B"].take(t)
	if len(got) != 1 || got[0].Action != ActionCodeChange {
		t.Fatalf("B got %+v", got)
	}
	if p := payloadAs[CodeChangePayload](t, got[0]); p.Code != "print(1)" || p.RoomID != "" {
		t.Fatalf("sync payload = %+v", p)
	}
	if n := len(s["A"].take(t)) + len(s["C"].take(t)); n != 0 {
		t.Fatalf("non-targets got %d frames", n)
	}

	// duplicate replies are tolerated
	if err := h.Sync("C", "B", "print(2)"); err != nil {
		t.Fatal(err)
	}
	if got := s["B"].take(t); len(got) != 1 {
		t.Fatalf("second sync: %+v", got)
	}

	// answering oneself is a silent no-op
	if err := h.Sync("B", "B", ""); err != nil {
		t.Fatal(err)
	}
	if got := s["B"].take(t); len(got) != 0 {
		t.Fatalf("self sync delivered %+v", got)
	}
}

func TestEditSkipsSender(t *testing.T) {
	h, s := connected(t, "A", "B", "C", "D")
	mustJoin(t, h, "A", "r1", "alice")
	mustJoin(t, h, "B", "r1", "bob")
	mustJoin(t, h, "C", "r1", "carol")
	mustJoin(t, h, "D", "r2", "dave")
	for _, rec := range s {
		rec.take(t)
	}

	if err := h.Edit("A", "r1", "x=1"); err != nil {
		t.Fatal(err)
	}
	if got := s["A"].take(t); len(got) != 0 {
		t.Fatalf("sender echoed: %+v", got)
	}
	for _, id := range []string{"B", "C"} {
		got := s[id].take(t)
		if len(got) != 1 || got[0].Action != ActionCodeChange {
			t.Fatalf("%s got %+v", id, got)
		}
		if p := payloadAs[CodeChangePayload](t, got[0]); p.Code != "x=1" {
			t.Fatalf("%s code = %q", id, p.Code)
		}
	}
	if got := s["D"].take(t); len(got) != 0 {
		t.Fatalf("other room got %+v", got)
	}
}

func TestDisconnectNotifiesAndCleansUp(t *testing.T) {
	h, s := connected(t, "A", "B")
	mustJoin(t, h, "A", "r1", "alice")
	mustJoin(t, h, "B", "r1", "bob")
	s["A"].take(t)
	s["B"].take(t)

	h.Disconnect("A")

	got := s["B"].take(t)
	if len(got) != 1 || got[0].Action != ActionDisconnected {
		t.Fatalf("B got %+v", got)
	}
	if p := payloadAs[DisconnectedPayload](t, got[0]); p.SocketID != "A" || p.Username != "alice" {
		t.Fatalf("disconnected payload = %+v", p)
	}
	if got := s["A"].take(t); len(got) != 0 {
		t.Fatalf("departing connection got %+v", got)
	}
	if ids := socketIDs(h.Members("r1")); !slices.Equal(ids, []string{"B"}) {
		t.Fatalf("Members(r1) = %v, want [B]", ids)
	}

	// nothing reaches A afterwards
	if err := h.Edit("B", "r1", "y=2"); err != nil {
		t.Fatal(err)
	}
	if err := h.Sync("B", "A", "y=2"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("sync to departed = %v, want ErrNotJoined", err)
	}
	if got := s["A"].take(t); len(got) != 0 {
		t.Fatalf("departed connection got %+v", got)
	}

	// second disconnect is a no-op
	h.Disconnect("A")
	if got := s["B"].take(t); len(got) != 0 {
		t.Fatalf("repeat disconnect notified B: %+v", got)
	}
	if _, ok := h.registry.Lookup("A"); ok {
		t.Fatal("A still registered")
	}
	if rooms := h.index.RoomsOf("A"); len(rooms) != 0 {
		t.Fatalf("A still in %v", rooms)
	}
}

func TestLastMemberLeavingDropsRoom(t *testing.T) {
	h, _ := connected(t, "A")
	mustJoin(t, h, "A", "r1", "alice")
	h.Disconnect("A")
	if len(h.index.rooms) != 0 {
		t.Fatalf("index still holds %d rooms", len(h.index.rooms))
	}
	if got := h.Members("r1"); len(got) != 0 {
		t.Fatalf("Members(r1) = %+v", got)
	}
}

func TestUnjoinedDisconnect(t *testing.T) {
	h, s := connected(t, "A", "B")
	mustJoin(t, h, "B", "r1", "bob")
	s["B"].take(t)

	h.Disconnect("A")
	if got := s["B"].take(t); len(got) != 0 {
		t.Fatalf("B heard about an unjoined connection: %+v", got)
	}
}

func TestProtocolMisuse(t *testing.T) {
	h, _ := connected(t, "A", "B")
	mustJoin(t, h, "A", "r1", "alice")

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"second join", func() error { return h.Join("A", "r2", "alice") }, ErrAlreadyJoined},
		{"empty room", func() error { return h.Join("B", "", "bob") }, ErrEmptyRoom},
		{"self room", func() error { return h.Join("B", "A", "bob") }, ErrReservedRoom},
		{"edit unjoined", func() error { return h.Edit("B", "r1", "x") }, ErrNotJoined},
		{"edit other room", func() error { return h.Edit("A", "r2", "x") }, ErrNotJoined},
		{"edit self room", func() error { return h.Edit("A", "A", "x") }, ErrNotJoined},
		{"sync unjoined", func() error { return h.Sync("B", "A", "x") }, ErrNotJoined},
		{"sync outside room", func() error { return h.Sync("A", "B", "x") }, ErrNotJoined},
		{"bad json", func() error { return h.Dispatch("A", []byte("{")) }, ErrBadFrame},
		{"missing payload", func() error { return h.Dispatch("B", []byte(`{"action":"join"}`)) }, ErrBadFrame},
		{"unknown action", func() error { return h.Dispatch("A", []byte(`{"action":"nope","payload":{}}`)) }, ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !IsProtocolError(err) {
				t.Fatalf("IsProtocolError(%v) = false", err)
			}
		})
	}

	if ids := socketIDs(h.Members("r1")); !slices.Equal(ids, []string{"A"}) {
		t.Fatalf("misuse changed the roster: %v", ids)
	}
}

func TestDispatchRoutesFrames(t *testing.T) {
	h, s := connected(t, "A", "B")

	frames := []struct {
		from, frame string
	}{
		{"A", `{"action":"join","payload":{"roomId":"r1","username":"alice"}}`},
		{"B", `{"action":"join","payload":{"roomId":"r1","username":"bob"}}`},
		{"A", `{"action":"sync-code","payload":{"socketId":"B","code":"print(1)"}}`},
		{"B", `{"action":"code-change","payload":{"roomId":"r1","code":"x=1"}}`},
	}
	for _, f := range frames {
		if err := h.Dispatch(f.from, []byte(f.frame)); err != nil {
			t.Fatalf("Dispatch(%s, %s): %v", f.from, f.frame, err)
		}
	}

	var actions []string
	for _, env := range s["B"].take(t) {
		actions = append(actions, env.Action)
	}
	if want := []string{ActionJoined, ActionCodeChange}; !slices.Equal(actions, want) {
		t.Fatalf("B actions = %v, want %v", actions, want)
	}

	actions = nil
	for _, env := range s["A"].take(t) {
		actions = append(actions, env.Action)
	}
	if want := []string{ActionJoined, ActionJoined, ActionCodeChange}; !slices.Equal(actions, want) {
		t.Fatalf("A actions = %v, want %v", actions, want)
	}
}

func TestRejectTargetsOffender(t *testing.T) {
	h, s := connected(t, "A", "B")
	mustJoin(t, h, "A", "r1", "alice")
	mustJoin(t, h, "B", "r1", "bob")
	s["A"].take(t)
	s["B"].take(t)

	h.Reject("A", ErrAlreadyJoined)
	got := s["A"].take(t)
	if len(got) != 1 || got[0].Action != ActionError {
		t.Fatalf("A got %+v", got)
	}
	if p := payloadAs[ErrorPayload](t, got[0]); p.Message != ErrAlreadyJoined.Error() {
		t.Fatalf("message = %q", p.Message)
	}
	if got := s["B"].take(t); len(got) != 0 {
		t.Fatalf("B got %+v", got)
	}
}

// Random join/leave sequences: the last roster equals the live joiners in join order.
func TestRosterMatchesLiveJoinOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		h := NewHub(discardLogger(), nil)
		var live []string
		next := 0
		var last *recorder

		for step := 0; step < 30; step++ {
			if len(live) == 0 || rng.Intn(3) > 0 {
				id := fmt.Sprintf("c%d", next)
				next++
				last = &recorder{}
				h.Connect(id, last)
				mustJoin(t, h, id, "room", "user-"+id)
				live = append(live, id)
				continue
			}
			i := rng.Intn(len(live))
			h.Disconnect(live[i])
			live = slices.Delete(live, i, i+1)
		}

		if ids := socketIDs(h.Members("room")); !slices.Equal(ids, live) {
			t.Fatalf("round %d: Members = %v, want %v", round, ids, live)
		}

		// the newest joiner's latest roster matches as long as it is still live
		id := fmt.Sprintf("c%d", next-1)
		if !slices.Contains(live, id) {
			continue
		}
		var roster []string
		for _, env := range last.take(t) {
			switch env.Action {
			case ActionJoined:
				roster = socketIDs(payloadAs[JoinedPayload](t, env).Clients)
			case ActionDisconnected:
				gone := payloadAs[DisconnectedPayload](t, env).SocketID
				roster = slices.DeleteFunc(roster, func(s string) bool { return s == gone })
			}
		}
		if !slices.Equal(roster, live) {
			t.Fatalf("round %d: client-side roster = %v, want %v", round, roster, live)
		}
	}
}

func TestUnknownConnectionIsServerError(t *testing.T) {
	h := NewHub(discardLogger(), nil)
	err := h.Join("Z", "r1", "zed")
	if !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("err = %v, want ErrUnknownConnection", err)
	}
	if IsProtocolError(err) {
		t.Fatal("unknown connection classified as client misuse")
	}
}
