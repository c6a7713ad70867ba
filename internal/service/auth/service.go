package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
	"github.com/Tallen231210/sequ3nce-ai-sub003/pkg/config"
	jwtpkg "github.com/Tallen231210/sequ3nce-ai-sub003/pkg/jwt"
)

// Service resolves external identities to users and manages session tokens.
// Identity verification itself happens upstream (see IdentityVerifier); this
// service never checks signatures on external credentials.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// ErrTokenRequired marks authorization attempts without a bearer token.
var ErrTokenRequired = errors.New("auth: token required")

// Session carries a signed session token and its lifetime.
type Session struct {
	Token     string
	ExpiresIn time.Duration
}

// ResolveIdentity returns the user bound to an external identity. It is a
// pure read: repository.ErrNotFound means the identity has never been
// provisioned, and repository.ErrUnavailable means the store could not
// answer. Callers must not collapse the two.
func (s Service) ResolveIdentity(ctx context.Context, externalID string) (*domain.User, error) {
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return nil, repository.ErrNotFound
	}
	return s.users.GetUserByExternalID(ctx, trimmed)
}

// IssueSession signs a session token for a provisioned identity.
func (s Service) IssueSession(userID, teamID string) (Session, error) {
	token, err := jwtpkg.GenerateToken(userID, teamID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresIn: s.cfg.SessionTTL}, nil
}

// Authorize validates a bearer session token and loads the associated user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, ErrTokenRequired
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}
