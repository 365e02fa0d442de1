// internal/lobby/store.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the authoritative in-memory table of active lobbies. It also
// indexes lobbies by host so repeated creates by the same user are
// idempotent. The store itself is never mutated directly from outside this
// package; all writes flow through the Coordinator.
type Store struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
	byHost  map[int64]uuid.UUID
	// byUser tracks which lobby each user is currently a member of. A user
	// coordinates at most one lobby at a time; this index is what enforces
	// it, independent of which connection carries an operation.
	byUser map[int64]uuid.UUID
}

func NewStore() *Store {
	return &Store{
		lobbies: make(map[uuid.UUID]*Lobby),
		byHost:  make(map[int64]uuid.UUID),
		byUser:  make(map[int64]uuid.UUID),
	}
}

// getOrCreate returns the lobby the user already hosts, or materializes a
// new one with the given privacy. The second return reports whether a new
// lobby was created.
func (s *Store) getOrCreate(hostID int64, privacy Privacy) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byHost[hostID]; ok {
		if l, ok := s.lobbies[id]; ok {
			return l, false
		}
		// Stale index entry; fall through and recreate.
		delete(s.byHost, hostID)
	}
	l := newLobby(hostID, privacy)
	s.lobbies[l.ID] = l
	s.byHost[hostID] = l.ID
	s.byUser[hostID] = l.ID
	return l, true
}

// memberOf returns the id of the lobby the user is currently a member of,
// if any. Entries pointing at destroyed lobbies are dropped lazily.
func (s *Store) memberOf(userID int64) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	if !ok {
		return uuid.UUID{}, false
	}
	if _, live := s.lobbies[id]; !live {
		delete(s.byUser, userID)
		return uuid.UUID{}, false
	}
	return id, true
}

// setMember records a user's membership after a successful join.
func (s *Store) setMember(userID int64, lobbyID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = lobbyID
}

// clearMember drops a user's membership entry if it still points at lobbyID.
func (s *Store) clearMember(userID int64, lobbyID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUser[userID] == lobbyID {
		delete(s.byUser, userID)
	}
}

// hostedBy returns the id of the lobby the user currently hosts, if any.
func (s *Store) hostedBy(hostID int64) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHost[hostID]
	return id, ok
}

// Get retrieves a lobby by id.
func (s *Store) Get(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// rehost updates the host index after a host handoff.
func (s *Store) rehost(lobbyID uuid.UUID, oldHost, newHost int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byHost[oldHost] == lobbyID {
		delete(s.byHost, oldHost)
	}
	s.byHost[newHost] = lobbyID
}

// remove deletes a lobby and its host index entry.
func (s *Store) remove(lobbyID uuid.UUID, hostID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[lobbyID]; !ok {
		logrus.Warnf("store: attempted to remove non-existent lobby %s", lobbyID)
		return
	}
	delete(s.lobbies, lobbyID)
	if s.byHost[hostID] == lobbyID {
		delete(s.byHost, hostID)
	}
}
