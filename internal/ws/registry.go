package ws

// Registry binds live connection ids to the display name given at join.
// Not safe for concurrent use; the Hub serializes access.
type Registry struct {
	names map[string]string
}

func NewRegistry() *Registry { return &Registry{names: map[string]string{}} }

// Register records the name for a connection, last write wins
func (r *Registry) Register(connID, username string) { r.names[connID] = username }

// Lookup returns the bound name, ok=false if the connection is unknown
func (r *Registry) Lookup(connID string) (string, bool) {
	name, ok := r.names[connID]
	return name, ok
}

// Unregister drops the binding, no-op when absent
func (r *Registry) Unregister(connID string) { delete(r.names, connID) }
