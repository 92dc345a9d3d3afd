package domain

import "time"

// TimelineEventType captures what happened in an audit entry.
type TimelineEventType string

const (
	TimelineCreated           TimelineEventType = "created"
	TimelineStatusChanged     TimelineEventType = "status_changed"
	TimelineAssigned          TimelineEventType = "assigned"
	TimelineManualAssigned    TimelineEventType = "manual_assigned"
	TimelineOverrideAssigned  TimelineEventType = "override_assigned"
	TimelineUnassigned        TimelineEventType = "unassigned"
	TimelineAssignmentPending TimelineEventType = "assignment_pending"
	TimelineEscalated         TimelineEventType = "escalated"
	TimelineEscalationRepeat  TimelineEventType = "escalation_repeated"
	TimelineSLAWarning        TimelineEventType = "sla_warning"
	TimelineSLABreach         TimelineEventType = "sla_breach"
	TimelineSLARuleMissing    TimelineEventType = "sla_rule_missing"
	TimelineSLARecomputed     TimelineEventType = "sla_recomputed"
	TimelineUrgencyChanged    TimelineEventType = "urgency_changed"
	TimelineCommentAdded      TimelineEventType = "comment_added"
)

// TimelineEvent is an immutable audit trail entry. Seq orders entries of
// one ticket in the order their transitions were accepted.
type TimelineEvent struct {
	ID        string
	TicketID  string
	Seq       int64
	Type      TimelineEventType
	ActorID   string
	ActorRole Role
	Timestamp time.Time
	Payload   map[string]any
}
