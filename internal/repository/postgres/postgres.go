package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository            = (*Repository)(nil)
	_ repository.TeamRepository            = (*Repository)(nil)
	_ repository.BillingSnapshotRepository = (*Repository)(nil)
)

// GetUserByExternalID fetches the user bound to an identity-provider subject.
func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	const query = `SELECT id, external_id, email, name, team_id, role, created_at
		FROM users WHERE external_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, externalID))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, external_id, email, name, team_id, role, created_at
		FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		name sql.NullString
	)
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &name, &u.TeamID, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storeErr(err)
	}
	if name.Valid {
		u.Name = name.String
	}
	return &u, nil
}

// ListUsersByTeam returns a team's users ordered by join time.
func (r *Repository) ListUsersByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	const query = `SELECT id, external_id, email, name, team_id, role, created_at
		FROM users WHERE team_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u    domain.User
			name sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Email, &name, &u.TeamID, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			u.Name = name.String
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateTeamWithAdmin inserts a team and its first user in one transaction.
// A unique violation on users.external_id means another call provisioned the
// same identity first; the team insert rolls back with it and the caller sees
// repository.ErrConflict.
func (r *Repository) CreateTeamWithAdmin(ctx context.Context, team *domain.Team, admin *domain.User) error {
	if team == nil || admin == nil {
		return fmt.Errorf("team and admin required")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	const teamInsert = `INSERT INTO teams (id, name, plan, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, teamInsert, team.ID, team.Name, team.Plan, team.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return repository.ErrConflict
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return storeErr(err)
	}

	const userInsert = `INSERT INTO users (id, external_id, email, name, team_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, userInsert,
		admin.ID,
		admin.ExternalID,
		admin.Email,
		emptyToNil(admin.Name),
		admin.TeamID,
		admin.Role,
		admin.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return repository.ErrConflict
			case "23503":
				return repository.ErrNotFound
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return storeErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// GetTeamByID returns a team by identifier.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	const query = `SELECT id, name, plan, created_at FROM teams WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, teamID)
	var team domain.Team
	if err := row.Scan(&team.ID, &team.Name, &team.Plan, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &team, nil
}

// ListTeamIDs enumerates all team identifiers, oldest first.
func (r *Repository) ListTeamIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM teams ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RenameTeam updates a team's display name.
func (r *Repository) RenameTeam(ctx context.Context, teamID, name string) error {
	const query = `UPDATE teams SET name = $2 WHERE id = $1 RETURNING id`
	var id string
	if err := r.pool.QueryRow(ctx, query, teamID, name).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return storeErr(err)
	}
	return nil
}

// UpdateTeamPlan updates a team's subscription plan tag.
func (r *Repository) UpdateTeamPlan(ctx context.Context, teamID, plan string) error {
	const query = `UPDATE teams SET plan = $2 WHERE id = $1 RETURNING id`
	var id string
	if err := r.pool.QueryRow(ctx, query, teamID, plan).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return storeErr(err)
	}
	return nil
}

// UpsertBillingSnapshot stores the latest projection fetched from the billing
// authority. Staleness is a serve-time property and is not persisted.
func (r *Repository) UpsertBillingSnapshot(ctx context.Context, snapshot *domain.BillingSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot required")
	}
	const query = `INSERT INTO billing_snapshots (team_id, status, seat_count, active_member_count, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id) DO UPDATE SET
			status = EXCLUDED.status,
			seat_count = EXCLUDED.seat_count,
			active_member_count = EXCLUDED.active_member_count,
			synced_at = EXCLUDED.synced_at`
	_, err := r.pool.Exec(ctx, query,
		snapshot.TeamID,
		snapshot.Status,
		snapshot.SeatCount,
		snapshot.ActiveMemberCount,
		snapshot.SyncedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return repository.ErrNotFound
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return storeErr(err)
	}
	return nil
}

// GetBillingSnapshot returns the last persisted projection for a team.
func (r *Repository) GetBillingSnapshot(ctx context.Context, teamID string) (*domain.BillingSnapshot, error) {
	const query = `SELECT team_id, status, seat_count, active_member_count, synced_at
		FROM billing_snapshots WHERE team_id = $1`
	row := r.pool.QueryRow(ctx, query, teamID)
	var s domain.BillingSnapshot
	if err := row.Scan(&s.TeamID, &s.Status, &s.SeatCount, &s.ActiveMemberCount, &s.SyncedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &s, nil
}

func emptyToNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// storeErr maps connection-level driver failures onto
// repository.ErrUnavailable so callers can retry instead of failing hard.
// Constraint errors are handled per call site before reaching here.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "53300" {
			return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return err
}
