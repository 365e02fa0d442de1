// internal/lobby/events.go
package lobby

// Event payload builders. All of them assume the lobby's mutex is held so
// the payload reflects exactly the state the transition produced.

func (l *Lobby) joinEventUnsafe(userID int64) map[string]interface{} {
	return map[string]interface{}{
		"type":    "lobby_update",
		"event":   "join",
		"user_id": userID,
		"host_id": l.HostID,
		"members": l.memberIDsUnsafe(),
	}
}

func (l *Lobby) leaveEventUnsafe(userID int64) map[string]interface{} {
	return map[string]interface{}{
		"type":    "lobby_update",
		"event":   "leave",
		"user_id": userID,
		"host_id": l.HostID,
		"members": l.memberIDsUnsafe(),
	}
}

func (l *Lobby) privacyEventUnsafe() map[string]interface{} {
	return map[string]interface{}{
		"type":    "privacy_update",
		"privacy": string(l.Privacy),
		"host_id": l.HostID,
	}
}

func (l *Lobby) rollEventUnsafe() map[string]interface{} {
	return map[string]interface{}{
		"type":    "roll_update",
		"host_id": l.HostID,
		"roll":    l.CurrentRoll,
	}
}

// stateEventUnsafe is the full private snapshot sent to a single connection
// on join or on an explicit state re-fetch after reconnect.
func (l *Lobby) stateEventUnsafe(userID int64) map[string]interface{} {
	return map[string]interface{}{
		"type":         "lobby_state",
		"lobby_id":     l.ID.String(),
		"host_id":      l.HostID,
		"your_id":      userID,
		"your_is_host": l.HostID == userID,
		"privacy":      string(l.Privacy),
		"members":      l.memberIDsUnsafe(),
		"current_roll": l.CurrentRoll,
	}
}
