package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
)

// Service provisions tenants on first login and handles team workflows.
type Service struct {
	users  repository.UserRepository
	teams  repository.TeamRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, teams repository.TeamRepository, logger *slog.Logger) Service {
	return Service{users: users, teams: teams, logger: logger}
}

// ErrInvalidInput marks provisioning calls with a malformed identity or email.
var ErrInvalidInput = errors.New("tenant: invalid input")

// ErrNotAdmin marks team mutations attempted without the admin role.
var ErrNotAdmin = errors.New("tenant: admin role required")

const defaultTeamName = "My Team"

// EnsureTenantInput carries the identity claims provisioning consumes. The
// external identity is assumed verified upstream; it is never parsed here.
type EnsureTenantInput struct {
	ExternalID   string
	Email        string
	DisplayName  string
	TeamNameHint string
}

// Membership identifies the tenant an external identity belongs to.
type Membership struct {
	TeamID string
	UserID string
}

// EnsureTenant resolves an external identity to its team and user, creating
// both on first sight. Calls are idempotent: the same external identity maps
// to the same pair no matter how many callers race. The unique constraint on
// users.external_id arbitrates who wins a concurrent first login; losers
// re-read the winner's mapping instead of surfacing the conflict.
func (s Service) EnsureTenant(ctx context.Context, input EnsureTenantInput) (Membership, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	email := strings.TrimSpace(input.Email)
	if externalID == "" {
		return Membership{}, fmt.Errorf("%w: external id required", ErrInvalidInput)
	}
	if email == "" {
		return Membership{}, fmt.Errorf("%w: email required", ErrInvalidInput)
	}

	user, err := s.users.GetUserByExternalID(ctx, externalID)
	if err == nil {
		return Membership{TeamID: user.TeamID, UserID: user.ID}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return Membership{}, fmt.Errorf("lookup identity: %w", err)
	}

	now := time.Now().UTC()
	team := &domain.Team{
		ID:        uuid.NewString(),
		Name:      teamName(input.TeamNameHint, input.DisplayName),
		Plan:      domain.PlanTrial,
		CreatedAt: now,
	}
	admin := &domain.User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Email:      email,
		Name:       strings.TrimSpace(input.DisplayName),
		TeamID:     team.ID,
		Role:       domain.RoleAdmin,
		CreatedAt:  now,
	}

	err = s.teams.CreateTeamWithAdmin(ctx, team, admin)
	if err == nil {
		s.logger.Info("tenant provisioned", "team_id", team.ID, "user_id", admin.ID)
		return Membership{TeamID: team.ID, UserID: admin.ID}, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return Membership{}, fmt.Errorf("create tenant: %w", err)
	}

	winner, err := s.users.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return Membership{}, fmt.Errorf("reread identity after conflict: %w", err)
	}
	s.logger.Info("tenant provisioning raced", "team_id", winner.TeamID, "user_id", winner.ID)
	return Membership{TeamID: winner.TeamID, UserID: winner.ID}, nil
}

// Overview is a team together with its members.
type Overview struct {
	Team    domain.Team
	Members []domain.User
}

// Overview returns a team and its members.
func (s Service) Overview(ctx context.Context, teamID string) (Overview, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return Overview{}, err
	}
	members, err := s.users.ListUsersByTeam(ctx, teamID)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Team: *team, Members: members}, nil
}

// Rename updates the team's display name. Only team admins may rename.
func (s Service) Rename(ctx context.Context, teamID, actorID, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: team name required", ErrInvalidInput)
	}
	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.TeamID != teamID || actor.Role != domain.RoleAdmin {
		return ErrNotAdmin
	}
	if err := s.teams.RenameTeam(ctx, teamID, trimmed); err != nil {
		return err
	}
	s.logger.Info("team renamed", "team_id", teamID, "actor_id", actorID)
	return nil
}

func teamName(hint, displayName string) string {
	if name := strings.TrimSpace(hint); name != "" {
		return name
	}
	if fields := strings.Fields(displayName); len(fields) > 0 {
		return fields[0] + "'s Team"
	}
	return defaultTeamName
}
