package domain

import "time"

// Roles a user can hold within a team.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is an account bound to exactly one team. ExternalID is the identity
// issued by the upstream identity provider; it is unique and immutable, and
// so is the team binding.
type User struct {
	ID         string
	ExternalID string
	Email      string
	Name       string
	TeamID     string
	Role       string
	CreatedAt  time.Time
}
