package auth

import (
	"context"
	"errors"

	jwt "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/password"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Interfaces"
)

// AuthService aggregates auth operations
type AuthService struct {
	userRepo   interfaces.UserRepository
	jwtService *jwt.Service
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo interfaces.UserRepository, jwtService *jwt.Service) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Login verifies credentials and issues a bearer token. An unknown email
// and a wrong password both resolve to ErrUnauthorized; callers cannot
// tell whether the account exists.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, tlmmodels.ErrNotFound) {
			return "", tlmmodels.ErrUnauthorized
		}
		return "", err
	}

	if !password.Verify(plaintext, user.PasswordHash) {
		return "", tlmmodels.ErrUnauthorized
	}

	return s.jwtService.Issue(user)
}

// UpsertUser creates or replaces a credential record. The plaintext is
// hashed here; models and repositories only ever see the hash.
func (s *AuthService) UpsertUser(ctx context.Context, email, plaintext, role string) (*tlmmodels.User, error) {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	return s.userRepo.Upsert(ctx, tlmmodels.NewUser(email, hash, role))
}
