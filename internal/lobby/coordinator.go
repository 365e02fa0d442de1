// internal/lobby/coordinator.go
package lobby

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emberwalk/lobbyd/internal/realtime"
)

// FriendChecker answers "is userID an accepted friend of friendID?". It is a
// boolean oracle over the portal's friend graph; this package never mutates
// the graph.
type FriendChecker interface {
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)
}

// FriendCheckerFunc adapts a plain function to the FriendChecker interface.
type FriendCheckerFunc func(ctx context.Context, userID, friendID int64) (bool, error)

func (f FriendCheckerFunc) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	return f(ctx, userID, friendID)
}

// Coordinator owns the lobby store and is its sole mutator. Every mutating
// operation on a given lobby runs under that lobby's mutex, and every
// successful transition emits exactly one event to the lobby's connections
// while the mutex is still held, which gives all recipients the same
// per-lobby event order. Failed transitions mutate nothing and emit nothing.
type Coordinator struct {
	store   *Store
	reg     *realtime.Registry
	friends FriendChecker
	log     *logrus.Logger
}

func NewCoordinator(reg *realtime.Registry, friends FriendChecker, logger *logrus.Logger) *Coordinator {
	c := &Coordinator{
		store:   NewStore(),
		reg:     reg,
		friends: friends,
		log:     logger,
	}
	// Disconnects feed the same leave path as explicit leaves, so no stale
	// membership survives a dropped connection.
	reg.OnDetach = func(lobbyID uuid.UUID, userID int64) {
		if err := c.Leave(lobbyID, userID); err != nil {
			c.log.Warnf("lobby %s: synthetic leave for user %d: %v", lobbyID, userID, err)
		}
	}
	return c
}

// Create returns the lobby the connection's user already hosts, or creates a
// new one with the given privacy. Repeated creates without an intervening
// leave return the same lobby. The connection is associated with the lobby
// and receives a private state snapshot.
func (c *Coordinator) Create(conn *realtime.Conn, privacy Privacy) *Lobby {
	// A user coordinates at most one lobby at a time: creating while a
	// member elsewhere leaves that lobby first. Keyed on the user's actual
	// membership, not the calling connection's association, so a fresh tab
	// cannot bypass it. A retried create for the user's own hosted lobby
	// falls through untouched.
	if cur, ok := c.store.memberOf(conn.UserID); ok {
		if hosted, isHost := c.store.hostedBy(conn.UserID); !isHost || hosted != cur {
			if err := c.Leave(cur, conn.UserID); err != nil {
				c.log.Warnf("lobby %s: implicit leave for user %d before create: %v", cur, conn.UserID, err)
			}
		}
	}

	for {
		l, created := c.store.getOrCreate(conn.UserID, privacy)
		if created {
			c.log.Infof("lobby %s: created by user %d (privacy %s)", l.ID, conn.UserID, privacy)
		}

		l.Mu.Lock()
		if len(l.Members) == 0 {
			// Raced the destruction of a previously hosted lobby; the host
			// index has been cleared, so the next attempt creates fresh.
			l.Mu.Unlock()
			continue
		}
		c.reg.Associate(conn.ID, l.ID)
		conn.Write(l.stateEventUnsafe(conn.UserID))
		l.Mu.Unlock()
		return l
	}
}

// Join adds the connection's user to the lobby if its privacy permits. The
// friend lookup crosses to an external system and therefore completes before
// the critical section is entered; the admission decision is re-validated
// under the lock afterwards.
func (c *Coordinator) Join(ctx context.Context, conn *realtime.Conn, lobbyID uuid.UUID) error {
	// Joining a different lobby while still a member of one leaves the old
	// lobby first, regardless of which connection the join arrives on;
	// duplicate joins of the same lobby pass through as no-ops.
	if cur, ok := c.store.memberOf(conn.UserID); ok && cur != lobbyID {
		if err := c.Leave(cur, conn.UserID); err != nil {
			c.log.Warnf("lobby %s: implicit leave for user %d before join: %v", cur, conn.UserID, err)
		}
	}

	l, ok := c.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	userID := conn.UserID

	l.Mu.Lock()
	if len(l.Members) == 0 {
		l.Mu.Unlock()
		return ErrNotFound
	}
	if _, isMember := l.Members[userID]; isMember {
		// Another tab of an existing member. Attach it and resend state;
		// membership is unchanged, so no broadcast.
		c.reg.Associate(conn.ID, l.ID)
		conn.Write(l.stateEventUnsafe(userID))
		l.Mu.Unlock()
		return nil
	}
	privacy, hostID := l.Privacy, l.HostID
	l.Mu.Unlock()

	switch privacy {
	case PrivacyClosed:
		return ErrPrivacyViolation
	case PrivacyFriends:
		accepted, err := c.friends.IsFriend(ctx, userID, hostID)
		if err != nil {
			return fmt.Errorf("friend lookup: %w", err)
		}
		if !accepted {
			return ErrPrivacyViolation
		}
	case PrivacyInviteOnly:
		// Possession of the lobby id is the invitation.
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Members) == 0 {
		return ErrNotFound
	}
	// The lobby may have transitioned while the friend lookup was in
	// flight. A friends-gated admission only stands if the policy and the
	// host it was checked against are unchanged.
	if l.Privacy != privacy || (privacy == PrivacyFriends && l.HostID != hostID) {
		return ErrPrivacyViolation
	}

	l.Members[userID] = struct{}{}
	c.store.setMember(userID, l.ID)
	c.reg.Associate(conn.ID, l.ID)
	c.publishUnsafe(l, l.joinEventUnsafe(userID))
	conn.Write(l.stateEventUnsafe(userID))
	return nil
}

// Leave removes the user from the lobby. If the departing user was host and
// members remain, the lowest-numbered remaining member becomes host. The
// lobby is destroyed atomically with the last leave. Duplicate leaves are
// no-ops.
func (c *Coordinator) Leave(lobbyID uuid.UUID, userID int64) error {
	l, ok := c.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Members) == 0 {
		return ErrNotFound
	}
	if _, isMember := l.Members[userID]; !isMember {
		return nil
	}

	delete(l.Members, userID)
	c.store.clearMember(userID, l.ID)

	if len(l.Members) == 0 {
		c.store.remove(l.ID, l.HostID)
		c.log.Infof("lobby %s: destroyed after last member %d left", l.ID, userID)
		c.publishUnsafe(l, l.leaveEventUnsafe(userID))
		c.reg.DissociateUser(l.ID, userID)
		return nil
	}

	if l.HostID == userID {
		oldHost := l.HostID
		l.promoteUnsafe()
		c.store.rehost(l.ID, oldHost, l.HostID)
		c.log.Infof("lobby %s: host handoff %d -> %d", l.ID, oldHost, l.HostID)
	}

	c.publishUnsafe(l, l.leaveEventUnsafe(userID))
	c.reg.DissociateUser(l.ID, userID)
	return nil
}

// SetPrivacy changes the lobby's join policy. Host only. The InviteOnly
// profile-gate precondition is evaluated by the caller before invoking this
// operation; the gate depends on data outside this core's ownership.
func (c *Coordinator) SetPrivacy(lobbyID uuid.UUID, userID int64, privacy Privacy) error {
	l, ok := c.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Members) == 0 {
		return ErrNotFound
	}
	if l.HostID != userID {
		return ErrNotAuthorized
	}
	if l.Privacy == privacy {
		return nil
	}

	l.Privacy = privacy
	c.publishUnsafe(l, l.privacyEventUnsafe())
	return nil
}

// PublishRoll replaces the lobby's current roll wholesale and broadcasts it
// to every connection in the lobby, including the host's own other tabs.
// Host only.
func (c *Coordinator) PublishRoll(lobbyID uuid.UUID, userID int64, roll *Roll) error {
	l, ok := c.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Members) == 0 {
		return ErrNotFound
	}
	if l.HostID != userID {
		return ErrNotAuthorized
	}

	l.CurrentRoll = roll
	c.publishUnsafe(l, l.rollEventUnsafe())
	return nil
}

// State sends the full current lobby snapshot privately to the connection.
// This is the explicit re-fetch path for reconnecting clients; there is no
// event replay.
func (c *Coordinator) State(conn *realtime.Conn) error {
	lobbyID, ok := c.reg.AssociationOf(conn.ID)
	if !ok {
		return ErrNotFound
	}
	l, ok := c.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if len(l.Members) == 0 {
		return ErrNotFound
	}
	conn.Write(l.stateEventUnsafe(conn.UserID))
	return nil
}

// Lookup returns the lobby for id, for read-side callers such as handlers.
func (c *Coordinator) Lookup(lobbyID uuid.UUID) (*Lobby, bool) {
	return c.store.Get(lobbyID)
}

// publishUnsafe delivers event to every connection currently associated with
// the lobby, per the registry snapshot taken now. Assumes the lobby mutex is
// held, which serializes enqueue order per lobby. Delivery per connection is
// non-blocking; a slow or dead connection drops the event rather than
// delaying the others.
func (c *Coordinator) publishUnsafe(l *Lobby, event map[string]interface{}) {
	for _, conn := range c.reg.ConnectionsInLobby(l.ID) {
		conn.Write(event)
	}
}
