package approval

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIllegalTransition is returned when the target status is not reachable
	// from the current status, whatever the role.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrRoleNotAuthorized is returned when the transition is legal but the
	// acting role is not in its role table entry.
	ErrRoleNotAuthorized = errors.New("role not authorized for transition")

	// ErrCommentRequired is returned when rejecting without a reason.
	ErrCommentRequired = errors.New("comment required when rejecting an entry")

	// ErrEntryLocked is returned for any attempt to move a locked entry.
	ErrEntryLocked = errors.New("entry is locked")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TransitionError carries the details of a rejected transition.
type TransitionError struct {
	From    Status
	To      Status
	Role    Role
	Allowed []string // legal targets or authorized roles, depending on Err
	Err     error
}

func (e *TransitionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrIllegalTransition):
		return fmt.Sprintf("cannot transition from '%s' to '%s'; allowed: %s",
			e.From, e.To, joinOrNone(e.Allowed))
	case errors.Is(e.Err, ErrRoleNotAuthorized):
		return fmt.Sprintf("role '%s' is not authorized to transition from '%s' to '%s'; required: %s",
			e.Role, e.From, e.To, joinOrNone(e.Allowed))
	case errors.Is(e.Err, ErrEntryLocked):
		return "locked entries cannot be modified; contact a system administrator"
	}
	return e.Err.Error()
}

func (e *TransitionError) Unwrap() error { return e.Err }

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// IsAuthorization reports whether err is a role or legality failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrRoleNotAuthorized)
}
