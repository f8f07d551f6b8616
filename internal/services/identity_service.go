package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"breederhub/api/internal/auth"
	"breederhub/api/internal/config"
	"breederhub/api/internal/models"
)

// IIdentityService turns a bearer token into the principal making the request.
type IIdentityService interface {
	ResolveCurrentUser(ctx context.Context, bearerToken string) (*models.Principal, error)
	IssueToken(user *models.User) (string, error)
}

// identityService implements IIdentityService.
type identityService struct {
	users IUserService
	cfg   *config.Config
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(users IUserService, cfg *config.Config) IIdentityService {
	return &identityService{users: users, cfg: cfg}
}

// ResolveCurrentUser validates the token and loads its user. The token alone is never trusted
// for the role: deleted or locked users are rejected and the stored role wins.
func (s *identityService) ResolveCurrentUser(ctx context.Context, bearerToken string) (*models.Principal, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearerToken), "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: Authorization token required", ErrUnauthenticated)
	}

	claims, err := auth.ValidateJWT(token, s.cfg.JwtSecret)
	if err != nil {
		log.Printf("DEBUG: rejected token: %v", err)
		return nil, fmt.Errorf("%w: Invalid or expired token", ErrUnauthenticated)
	}
	userID, err := claims.ParseUserID()
	if err != nil {
		return nil, fmt.Errorf("%w: Invalid or expired token", ErrUnauthenticated)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: User no longer exists", ErrUnauthenticated)
		}
		return nil, err
	}
	if user.Locked {
		return nil, fmt.Errorf("%w: Account is locked", ErrUnauthenticated)
	}
	if !user.Role.Valid() {
		log.Printf("ERROR: user %s has unknown role %q", user.ID.String(), user.Role)
		return nil, fmt.Errorf("%w: Account role is invalid", ErrUnauthenticated)
	}

	return &models.Principal{UserID: user.ID, Role: user.Role}, nil
}

// IssueToken signs a session token for user.
func (s *identityService) IssueToken(user *models.User) (string, error) {
	return auth.GenerateJWT(user.ID, user.Role, s.cfg.JwtSecret, s.cfg.JwtTTL)
}
