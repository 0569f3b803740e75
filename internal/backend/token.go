// README: Opportunistic bearer token expiry check. Signatures are the backend's job.
package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("token expired")

// TokenExpiry reads the exp claim without verifying the signature.
// ok is false for opaque tokens or tokens without exp.
func TokenExpiry(tok string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func CheckToken(tok string, now time.Time) error {
	if tok == "" {
		return fmt.Errorf("%w: no token", ErrUnauthorized)
	}
	if exp, ok := TokenExpiry(tok); ok && !now.Before(exp) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenExpired)
	}
	return nil
}
