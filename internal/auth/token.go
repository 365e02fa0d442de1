// internal/auth/token.go
package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued realtime token stays valid. Tokens are not
// revocable; the short TTL is the revocation mechanism.
const TokenTTL = 10 * time.Minute

var (
	// ErrUnconfigured indicates the signing secret is missing. The realtime
	// subsystem cannot function at all in that state, so it is surfaced
	// distinctly from ordinary auth failures.
	ErrUnconfigured = errors.New("realtime token secret not configured")

	// ErrInvalidToken covers malformed, tampered, and expired tokens alike.
	ErrInvalidToken = errors.New("invalid realtime token")
)

// signingSecret is loaded once at startup via Init.
var signingSecret []byte

// Init reads the signing secret from LOBBY_TOKEN_SECRET. A missing secret is
// not fatal here; issuance and verification return ErrUnconfigured instead,
// so operators can tell "broken server" apart from "bad client".
func Init() {
	signingSecret = []byte(os.Getenv("LOBBY_TOKEN_SECRET"))
}

// SetSecret overrides the signing secret. Intended for tests.
func SetSecret(secret []byte) {
	signingSecret = secret
}

// IssueToken mints a signed realtime token whose subject is userID and whose
// expiry is now + TokenTTL. The caller is trusted to have authenticated the
// user already; no identity check happens here.
func IssueToken(userID int64) (string, error) {
	if len(signingSecret) == 0 {
		return "", ErrUnconfigured
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingSecret)
}

// VerifyToken checks the signature and expiry of a realtime token and returns
// the user id from its subject. Any failure maps to ErrInvalidToken.
func VerifyToken(tokenString string) (int64, error) {
	if len(signingSecret) == 0 {
		return 0, ErrUnconfigured
	}

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return 0, ErrInvalidToken
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed sub claim", ErrInvalidToken)
	}
	return userID, nil
}
