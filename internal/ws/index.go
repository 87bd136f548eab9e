package ws

import "slices"

// Index tracks which connections are in which rooms.
// Members are kept in join order so rosters stay stable across notifications.
// Rooms with no members have no entry. Not safe for concurrent use.
type Index struct {
	rooms  map[string][]string // roomID -> members, oldest first
	byConn map[string][]string // connID -> roomIDs, oldest first
}

func NewIndex() *Index {
	return &Index{rooms: map[string][]string{}, byConn: map[string][]string{}}
}

// Join adds connID to roomID and returns the roster after the add.
// Joining a room twice keeps the original position.
func (x *Index) Join(roomID, connID string) []string {
	if !slices.Contains(x.rooms[roomID], connID) {
		x.rooms[roomID] = append(x.rooms[roomID], connID)
		x.byConn[connID] = append(x.byConn[connID], roomID)
	}
	return x.MembersOf(roomID)
}

// MembersOf returns a copy of the roster, empty for unknown rooms
func (x *Index) MembersOf(roomID string) []string {
	return slices.Clone(x.rooms[roomID])
}

// RoomsOf returns a copy of the rooms connID belongs to
func (x *Index) RoomsOf(connID string) []string {
	return slices.Clone(x.byConn[connID])
}

// Has reports whether connID is a member of roomID
func (x *Index) Has(roomID, connID string) bool {
	return slices.Contains(x.rooms[roomID], connID)
}

// Leave removes connID from roomID. It reports whether the room emptied
// as a result; removing an absent member is a no-op returning false.
func (x *Index) Leave(roomID, connID string) bool {
	members := x.rooms[roomID]
	i := slices.Index(members, connID)
	if i < 0 {
		return false
	}
	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(x.rooms, roomID)
	} else {
		x.rooms[roomID] = members
	}

	rooms := slices.DeleteFunc(x.byConn[connID], func(r string) bool { return r == roomID })
	if len(rooms) == 0 {
		delete(x.byConn, connID)
	} else {
		x.byConn[connID] = rooms
	}
	return len(members) == 0
}
