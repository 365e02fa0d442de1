// internal/handlers/token.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/emberwalk/lobbyd/internal/auth"
)

// SessionResolver resolves an incoming request to the portal user id behind
// it. Wired to the redis-backed session adapter in production; stubbed in
// tests.
type SessionResolver func(r *http.Request) (int64, error)

type tokenResponse struct {
	Token string `json:"token"`
}

type tokenError struct {
	Error string `json:"error"`
}

// TokenHandler mints a realtime token for the caller's session. The issuer
// trusts the resolved session completely; it performs no identity check of
// its own.
//
// Responses:
//
//	200 {"token": "{jwt}"}
//	401 when the session is missing or invalid
//	500 {"error": "realtime_unconfigured"} when the signing secret is absent
func TokenHandler(logger *logrus.Logger, resolve SessionResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := resolve(r)
		if err != nil {
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}

		token, err := auth.IssueToken(userID)
		if err != nil {
			if errors.Is(err, auth.ErrUnconfigured) {
				logger.Errorf("token issuance unconfigured: %v", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(tokenError{Error: "realtime_unconfigured"})
				return
			}
			logger.Errorf("token issuance failed for user %d: %v", userID, err)
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{Token: token})
	}
}
