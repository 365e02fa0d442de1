// internal/realtime/registry.go
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emberwalk/lobbyd/internal/auth"
)

// Registry tracks live connections and their lobby associations. It is the
// single source of truth for "which connections belong to which lobby" and is
// consulted exclusively by the broadcast path.
type Registry struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Conn
	// assoc maps connection id -> lobby id. Absent means unassociated.
	assoc map[uuid.UUID]uuid.UUID
	// byLobby indexes connections by lobby for fan-out snapshots.
	byLobby map[uuid.UUID]map[uuid.UUID]*Conn

	// OnDetach fires after a connection holding a lobby association is
	// unregistered, so disconnects feed the same leave path as explicit
	// leaves. Called without the registry lock held.
	OnDetach func(lobbyID uuid.UUID, userID int64)
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[uuid.UUID]*Conn),
		assoc:   make(map[uuid.UUID]uuid.UUID),
		byLobby: make(map[uuid.UUID]map[uuid.UUID]*Conn),
	}
}

// Register verifies token and, on success, binds conn to the token's subject
// and starts tracking it. A bad or expired token leaves the connection
// unregistered.
func (r *Registry) Register(conn *Conn, token string) (int64, error) {
	userID, err := auth.VerifyToken(token)
	if err != nil {
		return 0, err
	}
	conn.UserID = userID

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	return userID, nil
}

// Unregister removes a connection and cancels its I/O context, stopping the
// pumps driving it. If it held a lobby association the OnDetach callback is
// invoked afterwards with the lobby/user pair.
func (r *Registry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)

	lobbyID, associated := r.assoc[connID]
	if associated {
		delete(r.assoc, connID)
		r.detachFromIndexLocked(lobbyID, connID)
	}
	onDetach := r.OnDetach
	r.mu.Unlock()

	if conn.Cancel != nil {
		conn.Cancel()
	}
	if associated && onDetach != nil {
		onDetach(lobbyID, conn.UserID)
	}
}

// Lookup returns the connection for connID, if registered.
func (r *Registry) Lookup(connID uuid.UUID) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Associate binds a registered connection to a lobby, replacing any prior
// association. Unknown connections are ignored (they raced a disconnect).
func (r *Registry) Associate(connID, lobbyID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		logrus.Warnf("registry: associate for unknown connection %s", connID)
		return
	}
	if prev, had := r.assoc[connID]; had {
		r.detachFromIndexLocked(prev, connID)
	}
	r.assoc[connID] = lobbyID
	if r.byLobby[lobbyID] == nil {
		r.byLobby[lobbyID] = make(map[uuid.UUID]*Conn)
	}
	r.byLobby[lobbyID][connID] = conn
}

// DissociateUser clears the association of every connection the given user
// holds in the given lobby. Used when a user's membership ends while several
// of their tabs are attached.
func (r *Registry) DissociateUser(lobbyID uuid.UUID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID, conn := range r.byLobby[lobbyID] {
		if conn.UserID == userID {
			delete(r.assoc, connID)
			r.detachFromIndexLocked(lobbyID, connID)
		}
	}
}

// AssociationOf returns the lobby a connection is associated with.
func (r *Registry) AssociationOf(connID uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lobbyID, ok := r.assoc[connID]
	return lobbyID, ok
}

// ConnectionsInLobby returns a snapshot of the connections currently
// associated with lobbyID. The snapshot is safe to iterate after the
// registry lock is released; a connection mid-disconnect simply misses
// whatever is sent to the stale entry.
func (r *Registry) ConnectionsInLobby(lobbyID uuid.UUID) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*Conn, 0, len(r.byLobby[lobbyID]))
	for _, c := range r.byLobby[lobbyID] {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) detachFromIndexLocked(lobbyID, connID uuid.UUID) {
	if set, ok := r.byLobby[lobbyID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byLobby, lobbyID)
		}
	}
}
