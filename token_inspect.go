package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// BearerClaims is a read-only view of the backend-minted token. The client
// never trusts these claims for authorization; they are parsed without
// signature verification purely so logs can say whether a cached credential
// already expired before the mandatory re-exchange replaces it.
type BearerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// InspectBearerToken parses raw without verifying the signature.
func InspectBearerToken(raw string) (*BearerClaims, error) {
	claims := &BearerClaims{}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "cached token is not a parseable JWT")
	}

	return claims, nil
}

// ExpiredAt reports whether the token carries an exp claim in the past.
// Tokens without an exp claim are treated as unexpired.
func (c *BearerClaims) ExpiredAt(now time.Time) bool {
	if c.RegisteredClaims.ExpiresAt == nil {
		return false
	}
	return c.RegisteredClaims.ExpiresAt.Time.Before(now)
}
