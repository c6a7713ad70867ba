package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
)

var (
	// ErrInvalidSignature means the payload failed Stripe signature checks.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	// ErrWebhookNotConfigured means no signing secret is set, so events
	// cannot be verified and must be rejected.
	ErrWebhookNotConfigured = errors.New("billing: webhook secret not configured")
)

// Webhook verifies Stripe webhook signatures and applies the events that
// change a team's billing state. Everything else is acknowledged and ignored.
type Webhook struct {
	secret string
	svc    *Service
	logger *slog.Logger
}

// NewWebhook wires the webhook receiver to the synchronizer it feeds.
func NewWebhook(secret string, svc *Service, logger *slog.Logger) *Webhook {
	return &Webhook{secret: secret, svc: svc, logger: logger}
}

// Process verifies the signature, then applies the event. It returns the
// event type for request logging along with any processing error.
func (w *Webhook) Process(ctx context.Context, payload []byte, sigHeader string) (string, error) {
	if strings.TrimSpace(w.secret) == "" {
		return "", ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return string(event.Type), w.apply(ctx, &event)
}

func (w *Webhook) apply(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSessionEvent
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout.session: %w", err)
		}
		return w.handleCheckoutCompleted(ctx, session)

	case "customer.subscription.updated":
		var sub subscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return w.handleSubscriptionChanged(ctx, sub)

	case "customer.subscription.deleted":
		var sub subscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		// Deletion events can carry the final pre-cancel status; the
		// subscription is gone either way.
		sub.Status = domain.SubscriptionCanceled
		return w.handleSubscriptionChanged(ctx, sub)

	default:
		w.logger.Info("billing webhook ignored", "type", string(event.Type), "event_id", event.ID)
		return nil
	}
}

func (w *Webhook) handleCheckoutCompleted(ctx context.Context, session checkoutSessionEvent) error {
	teamID := strings.TrimSpace(session.Metadata[metadataTeamID])
	if teamID == "" {
		w.logger.Warn("checkout completed without team metadata", "session_id", session.ID)
		return nil
	}
	if err := w.svc.teams.UpdateTeamPlan(ctx, teamID, domain.PlanPro); err != nil {
		return fmt.Errorf("promote team plan: %w", err)
	}
	if _, err := w.svc.Refresh(ctx, teamID); err != nil {
		// The authoritative snapshot arrives with the subscription events
		// that follow checkout; a slow fetch here is not a delivery failure.
		w.logger.Warn("post-checkout billing refresh failed", "team_id", teamID, "error", err)
	}
	w.logger.Info("team promoted after checkout", "team_id", teamID, "session_id", session.ID)
	return nil
}

func (w *Webhook) handleSubscriptionChanged(ctx context.Context, sub subscriptionEvent) error {
	teamID := strings.TrimSpace(sub.Metadata[metadataTeamID])
	if teamID == "" {
		w.logger.Warn("subscription event without team metadata", "subscription_id", sub.ID)
		return nil
	}
	snapshot := domain.BillingSnapshot{
		TeamID:            teamID,
		Status:            mapStripeStatus(sub.Status),
		SeatCount:         sub.firstQuantity(),
		ActiveMemberCount: metadataInt(sub.Metadata, metadataActiveMembers),
		SyncedAt:          time.Now().UTC(),
	}
	w.svc.accept(ctx, snapshot)
	w.logger.Info("subscription event applied", "team_id", teamID, "status", snapshot.Status)
	return nil
}

// checkoutSessionEvent is the slice of a checkout.session payload this
// service reads.
type checkoutSessionEvent struct {
	ID       string            `json:"id"`
	Mode     string            `json:"mode"`
	Metadata map[string]string `json:"metadata"`
}

// subscriptionEvent is the slice of a customer.subscription payload this
// service reads.
type subscriptionEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			Quantity int64 `json:"quantity"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

func (s subscriptionEvent) firstQuantity() int {
	for _, item := range s.Items.Data {
		if item.Quantity > 0 {
			return int(item.Quantity)
		}
	}
	return 0
}
