// internal/database/profile.go

package database

import (
	"context"
)

// multiplayerProfileName is the saved-configuration name a host must have
// before a lobby may be opened to non-friends.
const multiplayerProfileName = "Multiplayer"

// HasMultiplayerProfile reports whether the user has a saved randomizer
// configuration named exactly "Multiplayer". Evaluated by the handler before
// an invite-only privacy transition is requested.
func HasMultiplayerProfile(ctx context.Context, userID int64) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM saved_profiles
			WHERE user_id=$1 AND name=$2
		)
	`
	var found bool
	if err := DB.QueryRow(ctx, q, userID, multiplayerProfileName).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}
