// internal/lobby/errors.go
package lobby

import "errors"

// Per-operation errors. All are recoverable: they are reported only to the
// requesting connection and never broadcast or allowed to desynchronize the
// lobby for other members.
var (
	// ErrNotFound means the referenced lobby does not exist.
	ErrNotFound = errors.New("lobby not found")

	// ErrNotAuthorized means a non-host attempted a host-only operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrPrivacyViolation means the lobby's privacy disallows the join.
	ErrPrivacyViolation = errors.New("privacy does not permit join")
)
