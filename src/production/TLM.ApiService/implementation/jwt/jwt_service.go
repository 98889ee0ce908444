package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
)

// Service issues and verifies bearer tokens: HS256, three base64url
// segments, HMAC-SHA256 over header.payload. Tokens carry the user id,
// email, role and an expiry; nothing else, so reissuing the same payload
// within the same second produces the same token.
type Service struct {
	config api_models.Config
}

// NewService creates a new JWT service
func NewService(config api_models.Config) *Service {
	return &Service{
		config: config,
	}
}

// Issue signs a token for the given user, valid for the configured
// duration.
func (s *Service) Issue(user *tlmmodels.User) (string, error) {
	claims := api_models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.TokenDuration)),
		},
		Email: user.Email,
		Role:  user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SecretKey))
}

// Verify validates a token and returns its claims. Malformed tokens, bad
// signatures, unexpected signing methods and expired tokens all resolve to
// ErrInvalidToken; nothing panics across this boundary.
func (s *Service) Verify(tokenString string) (*api_models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &api_models.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.SecretKey), nil
	})
	if err != nil {
		return nil, tlmmodels.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*api_models.Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, tlmmodels.ErrInvalidToken
}
