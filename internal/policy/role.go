// Package policy classifies callers into a closed role set and resolves them
// once per request. The transition rule table itself lives in the workflow
// package next to the engine that enforces it; this package answers "who is
// calling", not "what may they do".
package policy

// Role is the closed caller classification. Every caller is exactly one of
// these; the override capability is tracked separately on the Actor.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleCommercial Role = "commercial"
	RoleFinance    Role = "finance"
	RoleStaff      Role = "staff"
)

// ParseRole maps a stored profile role string onto the closed set, defaulting
// to customer for anything unknown.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleCommercial, RoleFinance, RoleStaff:
		return Role(s)
	default:
		return RoleCustomer
	}
}

// Actor is a resolved caller: identity, role and override capability.
// Resolved once per request and passed explicitly; nothing re-derives it.
type Actor struct {
	UserID   uint
	Role     Role
	Override bool // superuser-equivalent: bypasses lock and allow-list checks
}

// Anonymous is the actor for unauthenticated callers.
var Anonymous = Actor{Role: RoleCustomer}

// StaffEquivalent reports whether the actor may reach staff surfaces at all.
// Customers are never staff-equivalent, override always is.
func (a Actor) StaffEquivalent() bool {
	return a.Override || a.Role != RoleCustomer
}
