/*
Package approval provides the approval state machine for work entries.

PURPOSE:
  Time entries and production entries move through a single lifecycle
  before they are eligible for payroll. This package decides which
  status changes are legal, which roles may perform them, and which
  actions a caller should offer. It performs no I/O.

STATE DIAGRAM:
  ┌─────────┐  approve   ┌──────────┐   lock   ┌────────┐
  │ pending │──────────▶│ approved │────────▶│ locked │
  └─────────┘            └──────────┘          └────────┘
     │    ▲
  reject  │ resubmit
     ▼    │
  ┌──────────┐
  │ rejected │
  └──────────┘

KEY CONCEPTS IN THIS FILE (status.go):
  - Status: lifecycle state of an entry
  - Role:   acting principal's role

SEE ALSO:
  - rules.go:    Transition and role tables
  - machine.go:  Validation, batch approval, available actions
  - messages.go: Audit and notification text
*/
package approval

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusLocked   Status = "locked" // terminal
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusLocked}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusLocked:
		return true
	}
	return false
}

// Payable reports whether an entry in this status feeds payroll.
func (s Status) Payable() bool {
	return s == StatusApproved || s == StatusLocked
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending Approval"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusLocked:
		return "Locked (Payroll Processed)"
	}
	return string(s)
}

// actionLabel is the verb shown for a move into s.
func actionLabel(s Status) string {
	switch s {
	case StatusPending:
		return "Submit for Approval"
	case StatusApproved:
		return "Approve"
	case StatusRejected:
		return "Reject"
	case StatusLocked:
		return "Lock"
	}
	return string(s)
}

// =============================================================================
// ROLE
// =============================================================================

type Role string

const (
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleSupervisor:
		return true
	}
	return false
}
