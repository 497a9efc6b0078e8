package approval

import (
	"fmt"
	"strings"
)

// =============================================================================
// MACHINE
// =============================================================================

// Machine evaluates transition requests against a fixed rule set.
// It holds no mutable state and is safe for concurrent use.
type Machine struct {
	rules Rules
}

// NewMachine returns a machine using DefaultRules.
func NewMachine() *Machine {
	return &Machine{rules: DefaultRules()}
}

// NewMachineWithRules returns a machine using the given rules.
func NewMachineWithRules(rules Rules) *Machine {
	return &Machine{rules: rules}
}

// Rules returns the rule set the machine evaluates.
func (m *Machine) Rules() Rules { return m.rules }

// Request asks to move an entry from one status to another.
type Request struct {
	From    Status
	To      Status
	Role    Role
	Comment string
}

// Verdict is the outcome of a validation. A failed verdict carries Err;
// Message is Err's text for callers that only display it.
type Verdict struct {
	OK       bool
	Err      error
	Message  string
	Warnings []string
}

func passed(warnings ...string) Verdict {
	return Verdict{OK: true, Warnings: warnings}
}

func failed(err error) Verdict {
	return Verdict{OK: false, Err: err, Message: err.Error()}
}

// CanTransition checks the transition table, then the role table.
// Returns a *TransitionError wrapping ErrIllegalTransition or ErrRoleNotAuthorized.
func (m *Machine) CanTransition(from, to Status, role Role) error {
	t := Transition{From: from, To: to}
	if !m.rules.IsLegal(t) {
		next := m.rules.NextStatuses(from)
		allowed := make([]string, len(next))
		for i, s := range next {
			allowed[i] = string(s)
		}
		return &TransitionError{From: from, To: to, Role: role, Allowed: allowed, Err: ErrIllegalTransition}
	}
	if !m.rules.Permits(t, role) {
		roles := m.rules.AllowedRoles(t)
		allowed := make([]string, len(roles))
		for i, r := range roles {
			allowed[i] = string(r)
		}
		return &TransitionError{From: from, To: to, Role: role, Allowed: allowed, Err: ErrRoleNotAuthorized}
	}
	return nil
}

// Validate checks a full transition request.
//
// Order: transition/role tables, rejection comment, locked guard. The locked
// guard holds even for rule sets that would otherwise allow leaving locked.
// Under DefaultRules locked has no outgoing transitions, so a locked source
// fails the table check and reports ErrIllegalTransition.
func (m *Machine) Validate(req Request) Verdict {
	if err := m.CanTransition(req.From, req.To, req.Role); err != nil {
		return failed(err)
	}

	if req.To == StatusRejected && strings.TrimSpace(req.Comment) == "" {
		return failed(&TransitionError{From: req.From, To: req.To, Role: req.Role, Err: ErrCommentRequired})
	}

	if req.From == StatusLocked {
		return failed(&TransitionError{From: req.From, To: req.To, Role: req.Role, Err: ErrEntryLocked})
	}

	if req.To == StatusLocked {
		return passed("Locking this entry makes it read-only.")
	}
	return passed()
}

// Lock validates locking count entries at once, as done when payroll is finalized.
func (m *Machine) Lock(count int, role Role) Verdict {
	if !m.rules.Permits(Transition{From: StatusApproved, To: StatusLocked}, role) {
		return failed(m.CanTransition(StatusApproved, StatusLocked, role))
	}
	return passed(fmt.Sprintf("Locking %d entries. These entries will become read-only.", count))
}

// =============================================================================
// BATCH APPROVAL
// =============================================================================

// EntryRef identifies an entry and its current status.
type EntryRef struct {
	ID     string
	Status Status
}

// BatchResult partitions a batch. Errors has one reason per invalid ID.
type BatchResult struct {
	ValidIDs   []string
	InvalidIDs []string
	Errors     map[string]string
}

// BatchApprove splits entries into those role may approve and those it may not.
// It is not all-or-nothing: callers apply ValidIDs and report the rest.
func (m *Machine) BatchApprove(entries []EntryRef, role Role) BatchResult {
	result := BatchResult{
		ValidIDs:   []string{},
		InvalidIDs: []string{},
		Errors:     make(map[string]string),
	}
	for _, e := range entries {
		verdict := m.Validate(Request{From: e.Status, To: StatusApproved, Role: role})
		if verdict.OK {
			result.ValidIDs = append(result.ValidIDs, e.ID)
			continue
		}
		result.InvalidIDs = append(result.InvalidIDs, e.ID)
		result.Errors[e.ID] = verdict.Message
	}
	return result
}

// =============================================================================
// AVAILABLE ACTIONS
// =============================================================================

// Action is a status change a caller may offer.
type Action struct {
	To              Status
	Label           string
	RequiresComment bool
}

// AvailableActions lists the moves role may make from status, computed from
// the same tables as Validate.
func (m *Machine) AvailableActions(status Status, role Role) []Action {
	actions := []Action{}
	if status == StatusLocked {
		return actions
	}
	for _, to := range m.rules.NextStatuses(status) {
		if !m.rules.Permits(Transition{From: status, To: to}, role) {
			continue
		}
		actions = append(actions, Action{
			To:              to,
			Label:           actionLabel(to),
			RequiresComment: to == StatusRejected,
		})
	}
	return actions
}

// =============================================================================
// EDIT / DELETE PERMISSIONS
// =============================================================================

// CanEdit reports whether role may change an entry's payload in status.
// ownEntry is true when the actor submitted the entry.
func CanEdit(status Status, role Role, ownEntry bool) bool {
	switch {
	case status == StatusLocked:
		return false
	case role == RoleSupervisor:
		return status == StatusPending && ownEntry
	case role == RoleManager:
		return status == StatusPending || status == StatusRejected
	case role == RoleOwner:
		return status == StatusPending || status == StatusRejected || status == StatusApproved
	}
	return false
}

// CanDelete reports whether role may delete an entry in status.
func CanDelete(status Status, role Role) bool {
	return status != StatusLocked && role == RoleOwner
}
