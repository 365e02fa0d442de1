// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the realtime handshake. These give
// clients a concrete rejection reason instead of a silent drop.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Presented realtime token was missing, malformed, or expired.
	ServerUnconfigured    = 3002 // Token verification impossible: signing secret absent.
)
