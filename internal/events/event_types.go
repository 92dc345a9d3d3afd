package events

import (
	"time"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "assigned"
	EventTicketEscalated     EventType = "escalated"
	EventSLAWarning          EventType = "sla_warning"
	EventSLABreach           EventType = "sla_breach"
	EventSLARuleMissing      EventType = "sla_rule_missing"
	EventCommentAdded        EventType = "comment_added"
	EventAgentChanged        EventType = "agent_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id,omitempty"`
	AgentID   string       `json:"agent_id,omitempty"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   any          `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category     string                `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	UrgencyLevel domain.UrgencyLevel   `json:"urgency_level"`
	Title        string                `json:"title"`
	SLADueDate   *time.Time            `json:"sla_due_date,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Event     domain.TicketEvent  `json:"event"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AgentID         string `json:"agent_id"`
	PreviousAgentID string `json:"previous_agent_id,omitempty"`
	Method          string `json:"method"`
	Override        bool   `json:"override,omitempty"`
}

// TicketEscalatedPayload payload. Recipients is the agent/manager chain
// the notification layer should deliver to.
type TicketEscalatedPayload struct {
	Reason          string   `json:"reason"`
	EscalationCount int      `json:"escalation_count"`
	AgentID         string   `json:"agent_id,omitempty"`
	PreviousAgentID string   `json:"previous_agent_id,omitempty"`
	Recipients      []string `json:"recipients"`
}

// SLAPayload is shared by warning and breach events.
type SLAPayload struct {
	UrgencyLevel domain.UrgencyLevel `json:"urgency_level"`
	SLADueDate   *time.Time          `json:"sla_due_date,omitempty"`
	AgentID      string              `json:"agent_id,omitempty"`
	Recipients   []string            `json:"recipients,omitempty"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	Internal    bool   `json:"internal"`
	BodyPreview string `json:"body_preview"`
}

// AgentChangedPayload signals that an agent's availability may have grown.
type AgentChangedPayload struct {
	Status             domain.AgentStatus `json:"status"`
	CurrentTicketCount int                `json:"current_ticket_count"`
	MaxCapacity        int                `json:"max_capacity"`
}
