package domain

import (
	"slices"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusAssigned      TicketStatus = "assigned"
	TicketStatusInProgress    TicketStatus = "in_progress"
	TicketStatusPendingClient TicketStatus = "pending_client"
	TicketStatusEscalated     TicketStatus = "escalated"
	TicketStatusResolved      TicketStatus = "resolved"
	TicketStatusClosed        TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusPendingClient,
		TicketStatusEscalated, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal statuses stop SLA tracking and release agent capacity.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority is a descriptive label. It does not drive SLA or routing.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// UrgencyLevel drives SLA deadlines and routing tiers.
type UrgencyLevel int

const (
	UrgencyUrgent   UrgencyLevel = 1
	UrgencyModerate UrgencyLevel = 2
	UrgencyMild     UrgencyLevel = 3
)

// Valid reports whether u is within 1..3.
func (u UrgencyLevel) Valid() bool {
	return u >= UrgencyUrgent && u <= UrgencyMild
}

func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyUrgent:
		return "urgent"
	case UrgencyModerate:
		return "moderate"
	case UrgencyMild:
		return "mild"
	}
	return "unknown"
}

// Ticket is the aggregate for support requests. Status and assignment are
// only written through the lifecycle transition function.
type Ticket struct {
	ID              string
	RequesterID     string
	Title           string
	Description     string
	Category        string
	Priority        TicketPriority
	UrgencyLevel    UrgencyLevel
	Status          TicketStatus
	RequiredSkills  []string
	AssignedAgentID *string
	SLADueDate      *time.Time
	SLAWarningAt    *time.Time
	ResponseDueAt   *time.Time
	SLAWarningSent  bool
	SLABreached     bool
	SLARuleMissing  bool
	Escalated       bool
	EscalationCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	EscalatedAt     *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	// Version increments on every persisted change and guards against
	// lost updates across replicas.
	Version int64
}

// IsAssignedTo reports whether agentID is the current assignee.
func (t *Ticket) IsAssignedTo(agentID string) bool {
	return t.AssignedAgentID != nil && *t.AssignedAgentID == agentID
}

// HoldsCapacity is true when the ticket counts against its agent's load.
func (t *Ticket) HoldsCapacity() bool {
	return t.AssignedAgentID != nil && !t.Status.Terminal()
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.RequiredSkills = slices.Clone(t.RequiredSkills)
	cp.AssignedAgentID = cloneString(t.AssignedAgentID)
	cp.SLADueDate = cloneTime(t.SLADueDate)
	cp.SLAWarningAt = cloneTime(t.SLAWarningAt)
	cp.ResponseDueAt = cloneTime(t.ResponseDueAt)
	cp.EscalatedAt = cloneTime(t.EscalatedAt)
	cp.ResolvedAt = cloneTime(t.ResolvedAt)
	cp.ClosedAt = cloneTime(t.ClosedAt)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
