// internal/lobby/lobby.go
package lobby

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Privacy is a lobby's join policy.
type Privacy string

const (
	// PrivacyClosed admits nobody but the host.
	PrivacyClosed Privacy = "closed"
	// PrivacyFriends admits users in an accepted friend relation with the host.
	PrivacyFriends Privacy = "friends"
	// PrivacyInviteOnly admits any authenticated holder of the lobby id.
	PrivacyInviteOnly Privacy = "invite_only"
)

// ParsePrivacy validates a wire-level privacy string.
func ParsePrivacy(s string) (Privacy, error) {
	switch Privacy(s) {
	case PrivacyClosed, PrivacyFriends, PrivacyInviteOnly:
		return Privacy(s), nil
	}
	return "", fmt.Errorf("unknown privacy %q", s)
}

// Lobby is the authoritative in-memory state for one group of users. All
// mutation happens under Mu (single writer per lobby); operations on
// different lobbies proceed fully in parallel.
type Lobby struct {
	ID          uuid.UUID
	HostID      int64
	Members     map[int64]struct{}
	Privacy     Privacy
	CurrentRoll *Roll

	Mu sync.Mutex
}

func newLobby(hostID int64, privacy Privacy) *Lobby {
	return &Lobby{
		ID:      uuid.New(),
		HostID:  hostID,
		Members: map[int64]struct{}{hostID: {}},
		Privacy: privacy,
	}
}

// memberIDsUnsafe returns member ids in ascending order. Assumes Mu is held.
func (l *Lobby) memberIDsUnsafe() []int64 {
	ids := make([]int64, 0, len(l.Members))
	for id := range l.Members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// promoteUnsafe reassigns the host to the lowest-numbered remaining member,
// so promotion after a host leave is deterministic. Assumes Mu is held and
// Members is non-empty.
func (l *Lobby) promoteUnsafe() {
	l.HostID = l.memberIDsUnsafe()[0]
}
