package domain

import "time"

// Subscription statuses reported by the billing authority.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionUnpaid   = "unpaid"
	SubscriptionCanceled = "canceled"
)

// BillingSnapshot is a cached projection of a team's state in the external
// billing authority. The local store is never the source of truth for these
// fields; Stale marks a snapshot served after a failed refresh.
type BillingSnapshot struct {
	TeamID            string
	Status            string
	SeatCount         int
	ActiveMemberCount int
	SyncedAt          time.Time
	Stale             bool
}

// HasBillingIssue reports whether the subscription needs payment attention.
func (s BillingSnapshot) HasBillingIssue() bool {
	return s.Status == SubscriptionPastDue || s.Status == SubscriptionUnpaid
}

// ExceedsSeats reports whether active members have outgrown purchased seats.
// The +1 band absorbs the lag between adding a member and the billing
// authority's seat count catching up; comparisons must stay loose by one.
func (s BillingSnapshot) ExceedsSeats() bool {
	return s.Status == SubscriptionActive && s.ActiveMemberCount > s.SeatCount+1
}

// SubscriptionAllowed reports whether the status grants product access.
func (s BillingSnapshot) SubscriptionAllowed() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}
