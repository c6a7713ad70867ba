package billing

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
)

const sweepTimeout = 30 * time.Second

// Refresher keeps every team's snapshot inside the re-use window so gate
// decisions are usually served from cache. Reads go through Snapshot, so a
// sweep only reaches the billing authority for entries that actually
// expired.
type Refresher struct {
	svc      *Service
	teams    repository.TeamRepository
	logger   *slog.Logger
	interval time.Duration
}

// NewRefresher builds the background refresh loop.
func NewRefresher(svc *Service, teams repository.TeamRepository, logger *slog.Logger, interval time.Duration) *Refresher {
	r := &Refresher{svc: svc, teams: teams, logger: logger, interval: interval}
	if r.logger != nil {
		r.logger = r.logger.With("component", "billing-refresher")
	}
	return r
}

// Run executes the refresh loop until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if r == nil || r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("billing refresher started", "interval", r.interval)
	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("billing refresher stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Refresher) sweep(parent context.Context) {
	timeout := sweepTimeout
	if r.interval > 0 && r.interval < timeout {
		timeout = r.interval
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	teamIDs, err := r.teams.ListTeamIDs(ctx)
	if err != nil {
		r.logger.Warn("failed to list teams for billing sweep", "error", err)
		return
	}
	for _, teamID := range teamIDs {
		if ctx.Err() != nil {
			return
		}
		// Teams the authority has no record of are expected; everything
		// else is worth a warning.
		if _, err := r.svc.Snapshot(ctx, teamID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("billing sweep refresh failed", "team_id", teamID, "error", err)
		}
	}
	r.logger.Debug("billing sweep complete", "teams", len(teamIDs))
}
