package gate

import (
	"context"
	"errors"
	"sync"

	"log/slog"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
)

// State is the gate's answer for one identity at one moment.
type State string

const (
	// StateLoading means at least one input (identity, billing snapshot)
	// is not resolved yet. Loading is never a denial.
	StateLoading State = "loading"
	// StateDenied means both inputs resolved and the subscription does not
	// allow access. Decision.Redirect says where to send the user.
	StateDenied State = "denied"
	// StateGranted means both inputs resolved and the subscription status
	// allows access.
	StateGranted State = "granted"
)

// Decision is one gate evaluation. BillingIssue and SeatsExceeded are
// advisory flags for banners; SeatsExceeded never denies on its own.
type Decision struct {
	State         State  `json:"state"`
	Redirect      string `json:"redirect,omitempty"`
	BillingIssue  bool   `json:"billing_issue"`
	SeatsExceeded bool   `json:"seats_exceeded"`
}

// Evaluator turns the two gate inputs into a Decision. It is pure: all I/O
// happens before evaluation.
type Evaluator struct {
	subscribeURL  string
	onboardingURL string
}

// NewEvaluator sets the two redirect targets: subscribeURL for teams whose
// subscription lapsed, onboardingURL for the anomalous identity-without-
// tenant case.
func NewEvaluator(subscribeURL, onboardingURL string) *Evaluator {
	return &Evaluator{subscribeURL: subscribeURL, onboardingURL: onboardingURL}
}

// Evaluate decides from resolved inputs and their resolution errors.
//
// Identity not found is anomalous (provisioning runs at login) and denies
// toward onboarding rather than subscribe. Any unavailable input keeps the
// gate in Loading: transient infrastructure trouble must never read as a
// denial.
func (e *Evaluator) Evaluate(user *domain.User, userErr error, snapshot *domain.BillingSnapshot, snapErr error) Decision {
	if userErr != nil {
		if errors.Is(userErr, repository.ErrNotFound) {
			return Decision{State: StateDenied, Redirect: e.onboardingURL}
		}
		return Decision{State: StateLoading}
	}
	if user == nil {
		return Decision{State: StateLoading}
	}

	if snapErr != nil {
		// Absent means the authority has not determined this team yet;
		// unavailable means we could not ask. Neither is a denial.
		return Decision{State: StateLoading}
	}
	if snapshot == nil {
		return Decision{State: StateLoading}
	}
	return e.EvaluateSnapshot(*snapshot)
}

// EvaluateSnapshot decides from a resolved snapshot alone, for sessions
// whose identity is already established.
func (e *Evaluator) EvaluateSnapshot(snapshot domain.BillingSnapshot) Decision {
	if snapshot.SubscriptionAllowed() {
		return Decision{
			State:         StateGranted,
			SeatsExceeded: snapshot.ExceedsSeats(),
		}
	}
	return Decision{
		State:        StateDenied,
		Redirect:     e.subscribeURL,
		BillingIssue: snapshot.HasBillingIssue(),
	}
}

// SnapshotSource is the slice of the billing synchronizer the gate reads.
type SnapshotSource interface {
	Snapshot(ctx context.Context, teamID string) (domain.BillingSnapshot, error)
}

// Service evaluates gate decisions on demand and pushes re-evaluations to
// subscribed sessions when billing state changes.
type Service struct {
	eval    *Evaluator
	users   repository.UserRepository
	billing SnapshotSource
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]map[*Session]struct{}
}

// NewService builds the gate. Wire billing refreshes in with
// billing.OnUpdate(svc.ApplySnapshot) so decisions stay reactive.
func NewService(eval *Evaluator, users repository.UserRepository, billing SnapshotSource, logger *slog.Logger) *Service {
	return &Service{
		eval:     eval,
		users:    users,
		billing:  billing,
		logger:   logger,
		sessions: make(map[string]map[*Session]struct{}),
	}
}

// Check resolves identity by external ID, then the team's snapshot, and
// evaluates.
func (s *Service) Check(ctx context.Context, externalID string) Decision {
	user, err := s.users.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return s.eval.Evaluate(nil, err, nil, nil)
	}
	return s.CheckUser(ctx, user)
}

// CheckUser evaluates for an already-resolved identity.
func (s *Service) CheckUser(ctx context.Context, user *domain.User) Decision {
	if user == nil {
		return Decision{State: StateLoading}
	}
	snap, err := s.billing.Snapshot(ctx, user.TeamID)
	if err != nil {
		return s.eval.Evaluate(user, nil, nil, err)
	}
	return s.eval.Evaluate(user, nil, &snap, nil)
}

// ApplySnapshot re-evaluates every session on the snapshot's team. Designed
// to be registered as a billing update listener.
func (s *Service) ApplySnapshot(snap domain.BillingSnapshot) {
	decision := s.eval.EvaluateSnapshot(snap)

	s.mu.Lock()
	members := make([]*Session, 0, len(s.sessions[snap.TeamID]))
	for sess := range s.sessions[snap.TeamID] {
		members = append(members, sess)
	}
	s.mu.Unlock()

	for _, sess := range members {
		sess.push(decision)
	}
	if len(members) > 0 {
		s.logger.Debug("gate re-evaluated", "team_id", snap.TeamID, "state", decision.State, "sessions", len(members))
	}
}
