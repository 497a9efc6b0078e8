package approval

import (
	"fmt"
	"strings"
)

// EntryKind distinguishes the two entry types sharing this lifecycle.
type EntryKind string

const (
	KindTime       EntryKind = "time"
	KindProduction EntryKind = "production"
)

func (k EntryKind) Valid() bool { return k == KindTime || k == KindProduction }

func (k EntryKind) Label() string {
	if k == KindTime {
		return "Timesheet"
	}
	return "Production Entry"
}

// AuditMessage describes a status change for the audit log.
func AuditMessage(from, to Status, actorName, comment string) string {
	msg := fmt.Sprintf("Status changed from '%s' to '%s' by %s", from, to, actorName)
	if comment != "" {
		msg += " - Comments: " + comment
	}
	return msg
}

// Notification is the subject and body sent after a status change.
type Notification struct {
	Subject string
	Body    string
}

// NotificationDetails identifies what changed and who changed it.
type NotificationDetails struct {
	Kind       EntryKind
	From       Status
	To         Status
	WorkerName string
	Date       string
	ActorName  string
	Comment    string
}

// Notify builds the notification for a status change.
func Notify(d NotificationDetails) Notification {
	label := d.Kind.Label()
	lower := strings.ToLower(label)

	switch d.To {
	case StatusApproved:
		body := fmt.Sprintf("Your %s for %s on %s has been approved by %s.\n\n"+
			"You can now proceed with payroll processing for this entry.",
			lower, d.WorkerName, d.Date, d.ActorName)
		if d.Comment != "" {
			body += "\n\nComments: " + d.Comment
		}
		return Notification{
			Subject: fmt.Sprintf("%s Approved - %s - %s", label, d.WorkerName, d.Date),
			Body:    body,
		}

	case StatusRejected:
		reason := d.Comment
		if reason == "" {
			reason = "No reason provided"
		}
		return Notification{
			Subject: fmt.Sprintf("%s Rejected - %s - %s", label, d.WorkerName, d.Date),
			Body: fmt.Sprintf("Your %s for %s on %s has been rejected by %s.\n\n"+
				"Reason: %s\n\nPlease review and resubmit with corrections.",
				lower, d.WorkerName, d.Date, d.ActorName, reason),
		}

	case StatusLocked:
		return Notification{
			Subject: fmt.Sprintf("%s Locked - %s - %s", label, d.WorkerName, d.Date),
			Body: fmt.Sprintf("The %s for %s on %s has been locked after payroll processing.\n\n"+
				"This entry is now read-only and cannot be modified.",
				lower, d.WorkerName, d.Date),
		}
	}

	return Notification{
		Subject: fmt.Sprintf("%s Status Changed - %s", label, d.WorkerName),
		Body:    fmt.Sprintf("Status changed from %s to %s", d.From, d.To),
	}
}
