// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/emberwalk/lobbyd/internal/auth"
	"github.com/emberwalk/lobbyd/internal/lobby"
	"github.com/emberwalk/lobbyd/internal/realtime"
)

func newTestWSServer(t *testing.T, gate ProfileGate) (*WSServer, *realtime.Registry) {
	t.Helper()
	auth.SetSecret([]byte("ws-test-secret"))
	reg := realtime.NewRegistry()
	coord := lobby.NewCoordinator(reg, lobby.FriendCheckerFunc(
		func(ctx context.Context, userID, friendID int64) (bool, error) { return false, nil },
	), testLogger())
	return NewWSServer(testLogger(), coord, reg, gate), reg
}

func wsConn(t *testing.T, reg *realtime.Registry, userID int64) *realtime.Conn {
	t.Helper()
	token, err := auth.IssueToken(userID)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	conn := realtime.NewConn(0, func() {})
	if _, err := reg.Register(conn, token); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return conn
}

func dispatch(t *testing.T, s *WSServer, conn *realtime.Conn, raw string) {
	t.Helper()
	var msg clientMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("test message is not valid JSON: %v", err)
	}
	s.handleMessage(context.Background(), conn, msg, []byte(raw))
}

func recv(t *testing.T, conn *realtime.Conn) map[string]interface{} {
	t.Helper()
	select {
	case m := <-conn.Out:
		return m
	default:
		t.Fatalf("expected a reply, got none")
		return nil
	}
}

func flush(conn *realtime.Conn) {
	for {
		select {
		case <-conn.Out:
		default:
			return
		}
	}
}

func TestCreateAndRollFlow(t *testing.T) {
	allowGate := ProfileGate(func(ctx context.Context, userID int64) (bool, error) { return true, nil })
	s, reg := newTestWSServer(t, allowGate)
	host := wsConn(t, reg, 1)

	dispatch(t, s, host, `{"type":"create","privacy":"invite_only"}`)
	state := recv(t, host)
	if state["type"] != "lobby_state" {
		t.Fatalf("expected lobby_state after create, got %v", state["type"])
	}

	// Roll with the deprecated singular alias normalizes on the way in.
	dispatch(t, s, host, `{"type":"roll","characters":["Ganyu"],"boss":"Andrius"}`)
	ev := recv(t, host)
	if ev["type"] != "roll_update" {
		t.Fatalf("expected roll_update, got %v", ev["type"])
	}
	roll, ok := ev["roll"].(*lobby.Roll)
	if !ok {
		t.Fatalf("unexpected roll payload %T", ev["roll"])
	}
	if len(roll.Bosses) != 1 || roll.Bosses[0] != "Andrius" {
		t.Fatalf("expected boss alias normalized, got %v", roll.Bosses)
	}
}

func TestSetPrivacyGateDenied(t *testing.T) {
	denyGate := ProfileGate(func(ctx context.Context, userID int64) (bool, error) { return false, nil })
	s, reg := newTestWSServer(t, denyGate)
	host := wsConn(t, reg, 1)

	dispatch(t, s, host, `{"type":"create","privacy":"closed"}`)
	flush(host)

	dispatch(t, s, host, `{"type":"set_privacy","privacy":"invite_only"}`)
	reply := recv(t, host)
	if reply["type"] != "error" || reply["kind"] != "not_authorized" {
		t.Fatalf("expected not_authorized error reply, got %v", reply)
	}

	// Privacy stayed closed: a second user cannot join.
	joiner := wsConn(t, reg, 2)
	lobbyID, _ := reg.AssociationOf(host.ID)
	dispatch(t, s, joiner, `{"type":"join","lobby_id":"`+lobbyID.String()+`"}`)
	joinReply := recv(t, joiner)
	if joinReply["kind"] != "privacy_violation" {
		t.Fatalf("expected privacy_violation, got %v", joinReply)
	}
}

func TestGateOnlyAppliesToInviteOnly(t *testing.T) {
	denyGate := ProfileGate(func(ctx context.Context, userID int64) (bool, error) { return false, nil })
	s, reg := newTestWSServer(t, denyGate)
	host := wsConn(t, reg, 1)

	dispatch(t, s, host, `{"type":"create","privacy":"closed"}`)
	flush(host)

	dispatch(t, s, host, `{"type":"set_privacy","privacy":"friends"}`)
	ev := recv(t, host)
	if ev["type"] != "privacy_update" {
		t.Fatalf("expected privacy_update without gate consultation, got %v", ev)
	}
}

func TestLeaveWithoutLobby(t *testing.T) {
	s, reg := newTestWSServer(t, nil)
	conn := wsConn(t, reg, 3)

	dispatch(t, s, conn, `{"type":"leave"}`)
	reply := recv(t, conn)
	if reply["type"] != "error" || reply["kind"] != "not_found" {
		t.Fatalf("expected not_found error reply, got %v", reply)
	}
}

func TestUnknownMessageType(t *testing.T) {
	s, reg := newTestWSServer(t, nil)
	conn := wsConn(t, reg, 3)

	dispatch(t, s, conn, `{"type":"dance"}`)
	reply := recv(t, conn)
	if reply["type"] != "error" || reply["kind"] != "bad_request" {
		t.Fatalf("expected bad_request error reply, got %v", reply)
	}
}

func TestErrKindMapping(t *testing.T) {
	cases := map[string]error{
		"not_found":         lobby.ErrNotFound,
		"not_authorized":    lobby.ErrNotAuthorized,
		"privacy_violation": lobby.ErrPrivacyViolation,
		"auth_error":        auth.ErrInvalidToken,
		"unconfigured":      auth.ErrUnconfigured,
	}
	for want, err := range cases {
		if got := errKind(err); got != want {
			t.Errorf("errKind(%v) = %q, want %q", err, got, want)
		}
	}
}
