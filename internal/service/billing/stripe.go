package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripesub "github.com/stripe/stripe-go/v82/subscription"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
)

// Metadata keys the checkout flow writes onto Stripe subscriptions. They are
// the only link between a Stripe object and a team.
const (
	metadataTeamID        = "team_id"
	metadataActiveMembers = "active_member_count"
)

// StripeProvider reads subscription state from Stripe. Lookup goes through
// the team_id metadata key, so the provider never needs to store Stripe IDs
// locally.
type StripeProvider struct {
	search func(ctx context.Context, query string) ([]*stripe.Subscription, error)
}

// NewStripeProvider configures the package-level Stripe client with apiKey
// and returns a provider backed by the live API.
func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = strings.TrimSpace(apiKey)
	return &StripeProvider{search: searchSubscriptions}
}

// FetchSubscription finds the team's subscription and reduces it to the
// fields the synchronizer caches. Returns ErrNoSubscription when Stripe has
// no record for the team.
func (p *StripeProvider) FetchSubscription(ctx context.Context, teamID string) (Subscription, error) {
	if !isSafeQueryValue(teamID) {
		return Subscription{}, fmt.Errorf("%w: team %q", ErrNoSubscription, teamID)
	}
	subs, err := p.search(ctx, fmt.Sprintf("metadata['%s']:'%s'", metadataTeamID, teamID))
	if err != nil {
		return Subscription{}, fmt.Errorf("search stripe subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return Subscription{}, fmt.Errorf("%w: team %s", ErrNoSubscription, teamID)
	}
	return fromStripeSubscription(subs[0]), nil
}

func searchSubscriptions(ctx context.Context, query string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   query,
			Limit:   stripe.Int64(1),
		},
	}
	iter := stripesub.Search(params)
	var subs []*stripe.Subscription
	for iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func fromStripeSubscription(sub *stripe.Subscription) Subscription {
	out := Subscription{Status: mapStripeStatus(string(sub.Status))}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		out.SeatCount = int(sub.Items.Data[0].Quantity)
	}
	out.ActiveMemberCount = metadataInt(sub.Metadata, metadataActiveMembers)
	return out
}

// mapStripeStatus narrows Stripe's status vocabulary to ours. Statuses we do
// not model (incomplete, incomplete_expired, paused) fail closed as canceled.
func mapStripeStatus(status string) string {
	switch status {
	case domain.SubscriptionActive,
		domain.SubscriptionTrialing,
		domain.SubscriptionPastDue,
		domain.SubscriptionUnpaid,
		domain.SubscriptionCanceled:
		return status
	default:
		return domain.SubscriptionCanceled
	}
}

func metadataInt(metadata map[string]string, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(metadata[key]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// isSafeQueryValue keeps team IDs strict enough to embed in a Stripe search
// query without escaping.
func isSafeQueryValue(v string) bool {
	if len(v) == 0 || len(v) > 128 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}
