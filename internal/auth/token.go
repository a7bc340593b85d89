package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt returns the expiry embedded in the bearer. The signature is not verified; the
// server remains the authority, the client only needs to know when to refresh.
func ExpiresAt(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse bearer: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the bearer's exp claim has passed. Tokens that cannot be parsed
// count as expired; tokens without exp never expire.
func IsExpired(token string, now time.Time) bool {
	expiry, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	if expiry.IsZero() {
		return false
	}
	return !now.Before(expiry)
}
