package gate

import (
	"context"
	"fmt"
	"io"
	"testing"

	"log/slog"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
)

const (
	testSubscribeURL  = "/subscribe"
	testOnboardingURL = "/welcome"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEvaluator() *Evaluator {
	return NewEvaluator(testSubscribeURL, testOnboardingURL)
}

type usersMock struct {
	getByExternalID func(ctx context.Context, externalID string) (*domain.User, error)
}

func (m *usersMock) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	if m.getByExternalID != nil {
		return m.getByExternalID(ctx, externalID)
	}
	return &domain.User{ID: "user-1", ExternalID: externalID, TeamID: "team-1", Role: domain.RoleAdmin}, nil
}

func (m *usersMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (m *usersMock) ListUsersByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	return nil, nil
}

type billingMock struct {
	snapshot func(ctx context.Context, teamID string) (domain.BillingSnapshot, error)
}

func (m *billingMock) Snapshot(ctx context.Context, teamID string) (domain.BillingSnapshot, error) {
	if m.snapshot != nil {
		return m.snapshot(ctx, teamID)
	}
	return domain.BillingSnapshot{TeamID: teamID, Status: domain.SubscriptionActive, SeatCount: 5, ActiveMemberCount: 2}, nil
}

var (
	_ repository.UserRepository = (*usersMock)(nil)
	_ SnapshotSource            = (*billingMock)(nil)
)

func TestEvaluateGrantsAllowedStatuses(t *testing.T) {
	eval := newEvaluator()
	user := &domain.User{ID: "user-1", TeamID: "team-1"}

	for _, status := range []string{domain.SubscriptionActive, domain.SubscriptionTrialing} {
		snap := &domain.BillingSnapshot{TeamID: "team-1", Status: status, SeatCount: 3, ActiveMemberCount: 1}
		decision := eval.Evaluate(user, nil, snap, nil)
		if decision.State != StateGranted {
			t.Fatalf("status %q: expected granted, got %+v", status, decision)
		}
		if decision.Redirect != "" {
			t.Fatalf("status %q: granted must not carry a redirect, got %q", status, decision.Redirect)
		}
	}
}

func TestEvaluateDeniesLapsedStatuses(t *testing.T) {
	eval := newEvaluator()
	user := &domain.User{ID: "user-1", TeamID: "team-1"}

	cases := []struct {
		status       string
		billingIssue bool
	}{
		{domain.SubscriptionPastDue, true},
		{domain.SubscriptionUnpaid, true},
		{domain.SubscriptionCanceled, false},
	}
	for _, tc := range cases {
		snap := &domain.BillingSnapshot{TeamID: "team-1", Status: tc.status}
		decision := eval.Evaluate(user, nil, snap, nil)
		if decision.State != StateDenied {
			t.Fatalf("status %q: expected denied, got %+v", tc.status, decision)
		}
		if decision.Redirect != testSubscribeURL {
			t.Fatalf("status %q: expected subscribe redirect, got %q", tc.status, decision.Redirect)
		}
		if decision.BillingIssue != tc.billingIssue {
			t.Fatalf("status %q: expected billing_issue=%v, got %v", tc.status, tc.billingIssue, decision.BillingIssue)
		}
	}
}

func TestEvaluateUnknownIdentityRedirectsDefensively(t *testing.T) {
	eval := newEvaluator()

	decision := eval.Evaluate(nil, fmt.Errorf("%w: no such user", repository.ErrNotFound), nil, nil)
	if decision.State != StateDenied {
		t.Fatalf("expected denied for unknown identity, got %+v", decision)
	}
	if decision.Redirect != testOnboardingURL {
		t.Fatalf("expected onboarding redirect, got %q", decision.Redirect)
	}
	if decision.Redirect == testSubscribeURL {
		t.Fatal("unknown identity must not share the subscribe redirect")
	}
}

func TestEvaluateNeverDeniesWhileLoading(t *testing.T) {
	eval := newEvaluator()
	user := &domain.User{ID: "user-1", TeamID: "team-1"}

	cases := []struct {
		name     string
		user     *domain.User
		userErr  error
		snapshot *domain.BillingSnapshot
		snapErr  error
	}{
		{name: "identity unavailable", userErr: fmt.Errorf("%w: store down", repository.ErrUnavailable)},
		{name: "identity unresolved", user: nil},
		{name: "snapshot absent", user: user, snapErr: fmt.Errorf("%w: never fetched", repository.ErrNotFound)},
		{name: "snapshot unavailable", user: user, snapErr: fmt.Errorf("%w: authority down", repository.ErrUnavailable)},
		{name: "snapshot unresolved", user: user},
	}
	for _, tc := range cases {
		decision := eval.Evaluate(tc.user, tc.userErr, tc.snapshot, tc.snapErr)
		if decision.State != StateLoading {
			t.Fatalf("%s: expected loading, got %+v", tc.name, decision)
		}
		if decision.Redirect != "" {
			t.Fatalf("%s: loading must not redirect, got %q", tc.name, decision.Redirect)
		}
	}
}

func TestEvaluateSeatOverageIsAdvisory(t *testing.T) {
	eval := newEvaluator()
	user := &domain.User{ID: "user-1", TeamID: "team-1"}

	cases := []struct {
		status   string
		seats    int
		members  int
		exceeded bool
	}{
		{domain.SubscriptionActive, 5, 6, false},
		{domain.SubscriptionActive, 5, 7, true},
		{domain.SubscriptionTrialing, 5, 9, false},
	}
	for _, tc := range cases {
		snap := &domain.BillingSnapshot{TeamID: "team-1", Status: tc.status, SeatCount: tc.seats, ActiveMemberCount: tc.members}
		decision := eval.Evaluate(user, nil, snap, nil)
		if decision.State != StateGranted {
			t.Fatalf("%s %d/%d: seat pressure must not deny, got %+v", tc.status, tc.members, tc.seats, decision)
		}
		if decision.SeatsExceeded != tc.exceeded {
			t.Fatalf("%s %d/%d: expected seats_exceeded=%v, got %v", tc.status, tc.members, tc.seats, tc.exceeded, decision.SeatsExceeded)
		}
	}
}

func TestEvaluateStaleSnapshotStillDecides(t *testing.T) {
	eval := newEvaluator()
	user := &domain.User{ID: "user-1", TeamID: "team-1"}

	snap := &domain.BillingSnapshot{TeamID: "team-1", Status: domain.SubscriptionActive, Stale: true}
	if decision := eval.Evaluate(user, nil, snap, nil); decision.State != StateGranted {
		t.Fatalf("stale-but-present snapshot must still grant, got %+v", decision)
	}
}

func TestCheckGrantsProvisionedActiveTeam(t *testing.T) {
	svc := NewService(newEvaluator(), &usersMock{}, &billingMock{}, newLogger())

	decision := svc.Check(context.Background(), "ext-1")
	if decision.State != StateGranted {
		t.Fatalf("expected granted, got %+v", decision)
	}
}

func TestCheckDeniesUnknownIdentity(t *testing.T) {
	users := &usersMock{getByExternalID: func(ctx context.Context, externalID string) (*domain.User, error) {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, externalID)
	}}
	svc := NewService(newEvaluator(), users, &billingMock{}, newLogger())

	decision := svc.Check(context.Background(), "ext-1")
	if decision.State != StateDenied || decision.Redirect != testOnboardingURL {
		t.Fatalf("expected defensive denial, got %+v", decision)
	}
}

func TestCheckKeepsLoadingWhenIdentityUnavailable(t *testing.T) {
	users := &usersMock{getByExternalID: func(ctx context.Context, externalID string) (*domain.User, error) {
		return nil, fmt.Errorf("%w: store down", repository.ErrUnavailable)
	}}
	svc := NewService(newEvaluator(), users, &billingMock{}, newLogger())

	if decision := svc.Check(context.Background(), "ext-1"); decision.State != StateLoading {
		t.Fatalf("expected loading while identity unavailable, got %+v", decision)
	}
}

func TestCheckKeepsLoadingWhenSnapshotUnresolved(t *testing.T) {
	cases := []error{
		fmt.Errorf("%w: never fetched", repository.ErrNotFound),
		fmt.Errorf("%w: authority down", repository.ErrUnavailable),
	}
	for _, snapErr := range cases {
		billing := &billingMock{snapshot: func(ctx context.Context, teamID string) (domain.BillingSnapshot, error) {
			return domain.BillingSnapshot{}, snapErr
		}}
		svc := NewService(newEvaluator(), &usersMock{}, billing, newLogger())

		if decision := svc.Check(context.Background(), "ext-1"); decision.State != StateLoading {
			t.Fatalf("%v: expected loading, got %+v", snapErr, decision)
		}
	}
}
