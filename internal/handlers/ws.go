// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emberwalk/lobbyd/internal/auth"
	"github.com/emberwalk/lobbyd/internal/lobby"
	"github.com/emberwalk/lobbyd/internal/middleware"
	"github.com/emberwalk/lobbyd/internal/realtime"
)

// ProfileGate reports whether the user has a saved configuration named
// exactly "Multiplayer". Checked here, before an invite-only transition is
// handed to the state machine; the state machine does not re-verify it.
type ProfileGate func(ctx context.Context, userID int64) (bool, error)

// WSServer drives the realtime channel: handshake, read/write pumps, and
// dispatch of lobby operations to the coordinator.
type WSServer struct {
	logger *logrus.Logger
	coord  *lobby.Coordinator
	reg    *realtime.Registry
	gate   ProfileGate
}

func NewWSServer(logger *logrus.Logger, coord *lobby.Coordinator, reg *realtime.Registry, gate ProfileGate) *WSServer {
	return &WSServer{logger: logger, coord: coord, reg: reg, gate: gate}
}

// clientMessage is the envelope for every message on the realtime channel.
// Roll fields live at the top level of the "roll" message and are decoded
// separately so the deprecated singular alias is normalized in one place.
type clientMessage struct {
	Type    string `json:"type"`
	Privacy string `json:"privacy,omitempty"`
	LobbyID string `json:"lobby_id,omitempty"`
}

// Handler performs the realtime handshake. The token rides in the "token"
// query parameter; a failed verification closes the socket with a specific
// code rather than dropping it silently.
func (s *WSServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		token := r.URL.Query().Get("token")

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := realtime.NewConn(0, cancel)

		userID, err := s.reg.Register(conn, token)
		if err != nil {
			s.logger.Warnf("handshake rejected for %s: %v", remoteAddr, err)
			if errors.Is(err, auth.ErrUnconfigured) {
				c.Close(ServerUnconfigured, "realtime auth unconfigured")
			} else {
				c.Close(InvalidAuthTokenError, "invalid or expired token")
			}
			return
		}

		middleware.LogWebSocketConnect(s.logger, remoteAddr, r.URL.Path)
		conn.Write(map[string]interface{}{
			"type":    "connected",
			"user_id": userID,
		})

		go s.writePump(ctx, c, conn)
		readErr := s.readPump(ctx, c, conn)

		// A closing connection leaves its lobby immediately; there is no
		// reconnect window that preserves membership.
		s.reg.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(s.logger, remoteAddr, r.URL.Path, readErr)
	}
}

// readPump consumes client messages until the connection closes.
func (s *WSServer) readPump(ctx context.Context, c *websocket.Conn, conn *realtime.Conn) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.WriteError("bad_request", "invalid JSON")
			continue
		}

		s.handleMessage(ctx, conn, msg, data)
	}
}

// handleMessage dispatches one lobby operation. Per-operation failures are
// replied privately to the requester and never broadcast.
func (s *WSServer) handleMessage(ctx context.Context, conn *realtime.Conn, msg clientMessage, raw []byte) {
	switch msg.Type {
	case "create":
		privacy := lobby.PrivacyClosed
		if msg.Privacy != "" {
			p, err := lobby.ParsePrivacy(msg.Privacy)
			if err != nil {
				conn.WriteError("bad_request", err.Error())
				return
			}
			privacy = p
		}
		s.coord.Create(conn, privacy)

	case "join":
		lobbyID, err := uuid.Parse(msg.LobbyID)
		if err != nil {
			conn.WriteError("bad_request", "invalid lobby_id")
			return
		}
		if err := s.coord.Join(ctx, conn, lobbyID); err != nil {
			s.replyError(conn, err)
		}

	case "leave":
		lobbyID, ok := s.reg.AssociationOf(conn.ID)
		if !ok {
			conn.WriteError("not_found", "not in a lobby")
			return
		}
		if err := s.coord.Leave(lobbyID, conn.UserID); err != nil {
			s.replyError(conn, err)
		}

	case "set_privacy":
		lobbyID, ok := s.reg.AssociationOf(conn.ID)
		if !ok {
			conn.WriteError("not_found", "not in a lobby")
			return
		}
		privacy, err := lobby.ParsePrivacy(msg.Privacy)
		if err != nil {
			conn.WriteError("bad_request", err.Error())
			return
		}
		if privacy == lobby.PrivacyInviteOnly {
			passed, err := s.gate(ctx, conn.UserID)
			if err != nil {
				s.logger.Warnf("profile gate lookup for user %d: %v", conn.UserID, err)
				conn.WriteError("internal", "profile check failed")
				return
			}
			if !passed {
				conn.WriteError("not_authorized", "a saved Multiplayer profile is required")
				return
			}
		}
		if err := s.coord.SetPrivacy(lobbyID, conn.UserID, privacy); err != nil {
			s.replyError(conn, err)
		}

	case "roll":
		lobbyID, ok := s.reg.AssociationOf(conn.ID)
		if !ok {
			conn.WriteError("not_found", "not in a lobby")
			return
		}
		var roll lobby.Roll
		if err := json.Unmarshal(raw, &roll); err != nil {
			conn.WriteError("bad_request", "invalid roll payload")
			return
		}
		if err := s.coord.PublishRoll(lobbyID, conn.UserID, &roll); err != nil {
			s.replyError(conn, err)
		}

	case "state":
		if err := s.coord.State(conn); err != nil {
			s.replyError(conn, err)
		}

	default:
		conn.WriteError("bad_request", "unknown message type: "+msg.Type)
	}
}

func (s *WSServer) replyError(conn *realtime.Conn, err error) {
	conn.WriteError(errKind(err), err.Error())
}

// errKind maps an operation error onto its wire-level taxonomy entry.
func errKind(err error) string {
	switch {
	case errors.Is(err, lobby.ErrNotFound):
		return "not_found"
	case errors.Is(err, lobby.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, lobby.ErrPrivacyViolation):
		return "privacy_violation"
	case errors.Is(err, auth.ErrInvalidToken):
		return "auth_error"
	case errors.Is(err, auth.ErrUnconfigured):
		return "unconfigured"
	}
	return "internal"
}

// writePump drains the connection's out channel onto the socket and keeps
// the connection alive with periodic pings.
func (s *WSServer) writePump(ctx context.Context, c *websocket.Conn, conn *realtime.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.Out:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warnf("conn %s: failed to marshal outgoing message: %v", conn.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Warnf("conn %s: ping failed, assuming disconnect: %v", conn.ID, err)
				return
			}
		}
	}
}
