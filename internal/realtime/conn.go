// internal/realtime/conn.go
package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is a single live realtime connection bound to exactly one verified
// user. A user may hold several (multiple tabs); each is tracked separately.
type Conn struct {
	ID     uuid.UUID
	UserID int64

	// Cancel tears down the goroutines driving this connection's I/O.
	Cancel context.CancelFunc

	// Out carries server events to the write pump. Sends are non-blocking;
	// a full or abandoned channel drops the event rather than stalling the
	// rest of the lobby.
	Out chan map[string]interface{}
}

func NewConn(userID int64, cancel context.CancelFunc) *Conn {
	return &Conn{
		ID:     uuid.New(),
		UserID: userID,
		Cancel: cancel,
		Out:    make(chan map[string]interface{}, 16),
	}
}

// Write pushes msg onto the connection's out channel without blocking.
func (c *Conn) Write(msg map[string]interface{}) {
	select {
	case c.Out <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.Warnf("conn %s (user %d): out channel full or closed, dropped %q", c.ID, c.UserID, msgType)
	}
}

// WriteError sends a private error reply to this connection only.
func (c *Conn) WriteError(kind, message string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"kind":    kind,
		"message": message,
	})
}
