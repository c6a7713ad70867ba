package repository

import (
	"context"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsersByTeam(ctx context.Context, teamID string) ([]domain.User, error)
}

// TeamRepository manages teams. CreateTeamWithAdmin writes the team and its
// first user in one transaction; a team is never visible without a user.
type TeamRepository interface {
	CreateTeamWithAdmin(ctx context.Context, team *domain.Team, admin *domain.User) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	ListTeamIDs(ctx context.Context) ([]string, error)
	RenameTeam(ctx context.Context, teamID, name string) error
	UpdateTeamPlan(ctx context.Context, teamID, plan string) error
}

// BillingSnapshotRepository stores the last-known billing projection per team
// so restarts resume from last known good rather than from nothing.
type BillingSnapshotRepository interface {
	UpsertBillingSnapshot(ctx context.Context, snapshot *domain.BillingSnapshot) error
	GetBillingSnapshot(ctx context.Context, teamID string) (*domain.BillingSnapshot, error)
}
