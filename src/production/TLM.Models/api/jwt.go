package api_models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds JWT configuration
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

// Claims represents the signed identity carried by a bearer token. Subject
// is the user id; only ExpiresAt is set among the registered claims so that
// issuing the same payload twice yields the same token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}
