// internal/database/friend.go

package database

import (
	"context"
)

// IsFriend reports whether an accepted friend relation exists between the
// two users, in either direction. The friend graph is owned by the portal;
// the coordinator treats this as a read-only boolean oracle.
func IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM friends
			WHERE ((user1_id=$1 AND user2_id=$2)
			    OR (user1_id=$2 AND user2_id=$1))
			  AND status='accepted'
		)
	`
	var accepted bool
	if err := DB.QueryRow(ctx, q, userID, friendID).Scan(&accepted); err != nil {
		return false, err
	}
	return accepted, nil
}
