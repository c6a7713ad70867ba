package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
	"github.com/Tallen231210/sequ3nce-ai-sub003/pkg/config"
)

func TestResolveIdentityFound(t *testing.T) {
	users := usersMock{
		getByExternalIDFunc: func(_ context.Context, externalID string) (*domain.User, error) {
			if externalID != "idp|u1" {
				t.Fatalf("unexpected external id: %s", externalID)
			}
			return &domain.User{ID: "user-1", ExternalID: externalID, TeamID: "team-1"}, nil
		},
	}
	svc := New(users, newLogger(), config.APIConfig{})

	user, err := svc.ResolveIdentity(context.Background(), "  idp|u1  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestResolveIdentityNotFound(t *testing.T) {
	svc := New(usersMock{}, newLogger(), config.APIConfig{})

	if _, err := svc.ResolveIdentity(context.Background(), "idp|unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveIdentityKeepsUnavailableDistinct(t *testing.T) {
	users := usersMock{
		getByExternalIDFunc: func(context.Context, string) (*domain.User, error) {
			return nil, repository.ErrUnavailable
		},
	}
	svc := New(users, newLogger(), config.APIConfig{})

	_, err := svc.ResolveIdentity(context.Background(), "idp|u1")
	if !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unavailable must not be reported as not found")
	}
}

func TestIssueSessionAndAuthorizeRoundtrip(t *testing.T) {
	cfg := config.APIConfig{JWTSecret: "super-secret", SessionTTL: time.Minute}
	users := usersMock{
		getByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			if id != "user-1" {
				t.Fatalf("unexpected user lookup: %s", id)
			}
			return &domain.User{ID: id, TeamID: "team-1", Role: domain.RoleAdmin}, nil
		},
	}
	svc := New(users, newLogger(), cfg)

	session, err := svc.IssueSession("user-1", "team-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected a signed token")
	}
	if session.ExpiresIn != time.Minute {
		t.Fatalf("unexpected ttl: %s", session.ExpiresIn)
	}

	user, claims, err := svc.Authorize(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || claims.TeamID != "team-1" {
		t.Fatalf("unexpected authorization result: user=%+v claims=%+v", user, claims)
	}
}

func TestAuthorizeRejectsEmptyToken(t *testing.T) {
	svc := New(usersMock{}, newLogger(), config.APIConfig{JWTSecret: "super-secret"})

	if _, _, err := svc.Authorize(context.Background(), "   "); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestAuthorizeRejectsGarbageToken(t *testing.T) {
	svc := New(usersMock{}, newLogger(), config.APIConfig{JWTSecret: "super-secret"})

	if _, _, err := svc.Authorize(context.Background(), "not-a-token"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type usersMock struct {
	getByExternalIDFunc func(context.Context, string) (*domain.User, error)
	getByIDFunc         func(context.Context, string) (*domain.User, error)
	listByTeamFunc      func(context.Context, string) ([]domain.User, error)
}

func (m usersMock) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	if m.getByExternalIDFunc != nil {
		return m.getByExternalIDFunc(ctx, externalID)
	}
	return nil, repository.ErrNotFound
}

func (m usersMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m usersMock) ListUsersByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	if m.listByTeamFunc != nil {
		return m.listByTeamFunc(ctx, teamID)
	}
	return nil, nil
}
