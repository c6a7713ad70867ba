package domain

import "time"

// Subscription plan tags assigned to teams.
const (
	PlanTrial = "trial"
	PlanPro   = "pro"
)

// Team is the billing tenant: the unit users, seats and subscription state
// belong to. Created exactly once per first login, never deleted.
type Team struct {
	ID        string
	Name      string
	Plan      string
	CreatedAt time.Time
}
