package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
)

// Subscription is the per-team state the external billing authority reports.
type Subscription struct {
	Status            string
	SeatCount         int
	ActiveMemberCount int
}

// Provider reads subscription state from the external billing authority.
// The surface is read-only; nothing in this package writes back to it.
type Provider interface {
	FetchSubscription(ctx context.Context, teamID string) (Subscription, error)
}

// ErrNoSubscription is returned by providers for teams the billing authority
// has no record of. Callers see it as repository.ErrNotFound: the snapshot is
// absent, which is "not yet determined", never a denial.
var ErrNoSubscription = errors.New("billing: no subscription")

const defaultFetchTimeout = 10 * time.Second

// Service caches billing snapshots per team with a short re-use window.
// Refreshes coalesce per team; failed refreshes serve the last-known
// snapshot marked stale instead of failing the caller.
type Service struct {
	provider     Provider
	store        repository.BillingSnapshotRepository
	teams        repository.TeamRepository
	logger       *slog.Logger
	ttl          time.Duration
	fetchTimeout time.Duration

	group singleflight.Group

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	onUpdate []func(domain.BillingSnapshot)
}

type cacheEntry struct {
	snapshot domain.BillingSnapshot
	fetched  time.Time
}

// New constructs a Service. ttl is the snapshot re-use window; zero or
// negative means every read refreshes.
func New(provider Provider, store repository.BillingSnapshotRepository, teams repository.TeamRepository, logger *slog.Logger, ttl, fetchTimeout time.Duration) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Service{
		provider:     provider,
		store:        store,
		teams:        teams,
		logger:       logger,
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
		cache:        make(map[string]cacheEntry),
	}
}

// OnUpdate registers fn to run after every accepted refresh. Used to push
// re-evaluated gate decisions to connected clients.
func (s *Service) OnUpdate(fn func(domain.BillingSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// Snapshot returns the team's billing snapshot, refreshing it when the
// re-use window has passed. repository.ErrNotFound means the snapshot is
// absent (never fetched and unknown to the authority); a wrapped
// repository.ErrUnavailable means nothing is known and the authority is
// unreachable.
func (s *Service) Snapshot(ctx context.Context, teamID string) (domain.BillingSnapshot, error) {
	s.mu.RLock()
	entry, ok := s.cache[teamID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 && time.Since(entry.fetched) <= s.ttl {
		return entry.snapshot, nil
	}
	return s.refresh(ctx, teamID)
}

// Refresh bypasses the re-use window and fetches now. Concurrent refreshes
// for the same team share one upstream call.
func (s *Service) Refresh(ctx context.Context, teamID string) (domain.BillingSnapshot, error) {
	s.Invalidate(teamID)
	return s.refresh(ctx, teamID)
}

// Invalidate drops the cached entry so the next read refetches.
func (s *Service) Invalidate(teamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, teamID)
}

func (s *Service) refresh(ctx context.Context, teamID string) (domain.BillingSnapshot, error) {
	result, err, _ := s.group.Do(teamID, func() (any, error) {
		sub, err := s.fetch(ctx, teamID)
		if err == nil {
			snapshot := domain.BillingSnapshot{
				TeamID:            teamID,
				Status:            sub.Status,
				SeatCount:         sub.SeatCount,
				ActiveMemberCount: sub.ActiveMemberCount,
				SyncedAt:          time.Now().UTC(),
			}
			s.accept(ctx, snapshot)
			return snapshot, nil
		}
		if errors.Is(err, ErrNoSubscription) {
			return domain.BillingSnapshot{}, fmt.Errorf("%w: team %s has no billing record", repository.ErrNotFound, teamID)
		}

		// Authority unreachable: serve the last-known snapshot marked stale
		// rather than failing the caller.
		if stale, ok := s.lastKnown(ctx, teamID); ok {
			s.logger.Warn("billing refresh failed, serving stale snapshot", "team_id", teamID, "error", err)
			stale.Stale = true
			return stale, nil
		}
		return domain.BillingSnapshot{}, fmt.Errorf("%w: billing authority unreachable: %v", repository.ErrUnavailable, err)
	})
	if err != nil {
		return domain.BillingSnapshot{}, err
	}
	return result.(domain.BillingSnapshot), nil
}

// fetch calls the provider with a bounded retry. The fetch context is
// detached from the caller so one abandoned request cannot cancel a refresh
// other callers are waiting on.
func (s *Service) fetch(ctx context.Context, teamID string) (Subscription, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	var sub Subscription
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(fctx, backoff, func(ctx context.Context) error {
		var ferr error
		sub, ferr = s.provider.FetchSubscription(ctx, teamID)
		if ferr == nil || errors.Is(ferr, ErrNoSubscription) {
			return ferr
		}
		return retry.RetryableError(ferr)
	})
	return sub, err
}

// accept installs a fresh snapshot: memory cache, persistence, listeners.
// Persistence is best effort; the projection survives restarts but never
// blocks serving.
func (s *Service) accept(ctx context.Context, snapshot domain.BillingSnapshot) {
	s.mu.Lock()
	s.cache[snapshot.TeamID] = cacheEntry{snapshot: snapshot, fetched: time.Now()}
	listeners := make([]func(domain.BillingSnapshot), len(s.onUpdate))
	copy(listeners, s.onUpdate)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.UpsertBillingSnapshot(context.WithoutCancel(ctx), &snapshot); err != nil {
			s.logger.Warn("persist billing snapshot failed", "team_id", snapshot.TeamID, "error", err)
		}
	}
	s.logger.Info("billing snapshot refreshed", "team_id", snapshot.TeamID, "status", snapshot.Status)

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// lastKnown looks for a previous snapshot, preferring memory over the
// persisted projection.
func (s *Service) lastKnown(ctx context.Context, teamID string) (domain.BillingSnapshot, bool) {
	s.mu.RLock()
	entry, ok := s.cache[teamID]
	s.mu.RUnlock()
	if ok {
		return entry.snapshot, true
	}
	if s.store == nil {
		return domain.BillingSnapshot{}, false
	}
	persisted, err := s.store.GetBillingSnapshot(ctx, teamID)
	if err != nil {
		return domain.BillingSnapshot{}, false
	}
	return *persisted, true
}
