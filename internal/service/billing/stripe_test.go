package billing

import (
	"context"
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
)

func TestMapStripeStatus(t *testing.T) {
	cases := map[string]string{
		"active":             domain.SubscriptionActive,
		"trialing":           domain.SubscriptionTrialing,
		"past_due":           domain.SubscriptionPastDue,
		"unpaid":             domain.SubscriptionUnpaid,
		"canceled":           domain.SubscriptionCanceled,
		"incomplete":         domain.SubscriptionCanceled,
		"incomplete_expired": domain.SubscriptionCanceled,
		"paused":             domain.SubscriptionCanceled,
		"":                   domain.SubscriptionCanceled,
	}
	for in, want := range cases {
		if got := mapStripeStatus(in); got != want {
			t.Fatalf("mapStripeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripeProviderFetchSubscription(t *testing.T) {
	var gotQuery string
	provider := &StripeProvider{search: func(ctx context.Context, query string) ([]*stripe.Subscription, error) {
		gotQuery = query
		return []*stripe.Subscription{{
			Status: stripe.SubscriptionStatusActive,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{Quantity: 7}},
			},
			Metadata: map[string]string{"active_member_count": "5"},
		}}, nil
	}}

	sub, err := provider.FetchSubscription(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotQuery != "metadata['team_id']:'team-1'" {
		t.Fatalf("unexpected search query %q", gotQuery)
	}
	if sub.Status != domain.SubscriptionActive || sub.SeatCount != 7 || sub.ActiveMemberCount != 5 {
		t.Fatalf("unexpected subscription %+v", sub)
	}
}

func TestStripeProviderNoMatchIsNoSubscription(t *testing.T) {
	provider := &StripeProvider{search: func(ctx context.Context, query string) ([]*stripe.Subscription, error) {
		return nil, nil
	}}

	_, err := provider.FetchSubscription(context.Background(), "team-1")
	if !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("expected no subscription error, got %v", err)
	}
}

func TestStripeProviderSearchErrorIsNotAbsence(t *testing.T) {
	provider := &StripeProvider{search: func(ctx context.Context, query string) ([]*stripe.Subscription, error) {
		return nil, errors.New("stripe 503")
	}}

	_, err := provider.FetchSubscription(context.Background(), "team-1")
	if err == nil || errors.Is(err, ErrNoSubscription) {
		t.Fatalf("search failure must not read as absence, got %v", err)
	}
}

func TestStripeProviderRejectsUnsafeTeamID(t *testing.T) {
	provider := &StripeProvider{search: func(ctx context.Context, query string) ([]*stripe.Subscription, error) {
		t.Fatal("search must not run for unsafe ids")
		return nil, nil
	}}

	_, err := provider.FetchSubscription(context.Background(), "team'1")
	if !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("expected no subscription error, got %v", err)
	}
}

func TestStripeProviderMissingItemsAndMetadata(t *testing.T) {
	provider := &StripeProvider{search: func(ctx context.Context, query string) ([]*stripe.Subscription, error) {
		return []*stripe.Subscription{{Status: stripe.SubscriptionStatusTrialing}}, nil
	}}

	sub, err := provider.FetchSubscription(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sub.Status != domain.SubscriptionTrialing || sub.SeatCount != 0 || sub.ActiveMemberCount != 0 {
		t.Fatalf("unexpected subscription %+v", sub)
	}
}

func TestMetadataInt(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"4", 4},
		{" 12 ", 12},
		{"", 0},
		{"-3", 0},
		{"abc", 0},
	}
	for _, tc := range cases {
		md := map[string]string{"active_member_count": tc.raw}
		if got := metadataInt(md, "active_member_count"); got != tc.want {
			t.Fatalf("metadataInt(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
