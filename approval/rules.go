package approval

import "fmt"

// =============================================================================
// RULE TABLES
// =============================================================================

// Transition is a (from, to) status pair.
type Transition struct {
	From Status
	To   Status
}

func (t Transition) String() string { return fmt.Sprintf("%s->%s", t.From, t.To) }

var defaultTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusLocked},
	StatusRejected: {StatusPending},
	StatusLocked:   {},
}

var defaultPermissions = map[Transition][]Role{
	{StatusPending, StatusApproved}: {RoleManager, RoleOwner},
	{StatusPending, StatusRejected}: {RoleManager, RoleOwner},
	{StatusApproved, StatusLocked}:  {RoleOwner},
	{StatusRejected, StatusPending}: {RoleSupervisor, RoleManager, RoleOwner},
}

// Rules holds the transition table and the role table.
// Rules is immutable once built; accessors return copies.
type Rules struct {
	transitions map[Status][]Status
	permissions map[Transition][]Role
}

// DefaultRules returns the standard approval rules.
func DefaultRules() Rules {
	return NewRules(defaultTransitions, defaultPermissions)
}

// NewRules builds a rule set from the given tables. The tables are copied.
func NewRules(transitions map[Status][]Status, permissions map[Transition][]Role) Rules {
	r := Rules{
		transitions: make(map[Status][]Status, len(transitions)),
		permissions: make(map[Transition][]Role, len(permissions)),
	}
	for from, tos := range transitions {
		r.transitions[from] = append([]Status(nil), tos...)
	}
	for t, roles := range permissions {
		r.permissions[t] = append([]Role(nil), roles...)
	}
	return r
}

// NextStatuses returns the legal targets from a status, in table order.
func (r Rules) NextStatuses(from Status) []Status {
	return append([]Status(nil), r.transitions[from]...)
}

// AllowedRoles returns the roles that may perform a transition.
func (r Rules) AllowedRoles(t Transition) []Role {
	return append([]Role(nil), r.permissions[t]...)
}

// IsLegal reports whether the transition exists in the table.
func (r Rules) IsLegal(t Transition) bool {
	for _, to := range r.transitions[t.From] {
		if to == t.To {
			return true
		}
	}
	return false
}

// Permits reports whether role may perform t. An illegal transition is never permitted.
func (r Rules) Permits(t Transition, role Role) bool {
	if !r.IsLegal(t) {
		return false
	}
	for _, allowed := range r.permissions[t] {
		if allowed == role {
			return true
		}
	}
	return false
}
