// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client holding the portal's session table. Connect
// it once at application startup.
var Rdb *redis.Client

// cookieName is the portal's session cookie. Sessions themselves are created
// and expired by the portal; this service only resolves them to a user id.
const cookieName = "portal_session"

// ErrNoSession indicates the request carried no valid portal session.
var ErrNoSession = errors.New("no valid portal session")

// Connect initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// UserFromRequest resolves the request's session cookie to the logged-in
// user id. Any failure collapses to ErrNoSession so callers can answer 401
// uniformly.
func UserFromRequest(ctx context.Context, r *http.Request) (int64, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return 0, ErrNoSession
	}

	val, err := Rdb.Get(ctx, "session:"+cookie.Value).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoSession
		}
		return 0, fmt.Errorf("session lookup: %w", err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ErrNoSession
	}
	return userID, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
