package dto

import (
	"time"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterID    string   `json:"requester_id" validate:"omitempty,max=64"`
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"required,max=10000"`
	Category       string   `json:"category" validate:"required,max=64"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	UrgencyLevel   int      `json:"urgency_level" validate:"required,min=1,max=3"`
	RequiredSkills []string `json:"required_skills" validate:"omitempty,max=20,dive,max=64"`
}

// UpdateStatusRequest drives the lifecycle. Assign and escalate have their
// own endpoints.
type UpdateStatusRequest struct {
	Event   string `json:"event" validate:"required,oneof=start await_client resume resolve close reopen"`
	Comment string `json:"comment" validate:"max=2000"`
}

// UpdateUrgencyRequest payload.
type UpdateUrgencyRequest struct {
	UrgencyLevel int `json:"urgency_level" validate:"required,min=1,max=3"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body     string `json:"body" validate:"required,max=10000"`
	Internal bool   `json:"internal"`
}

// AssignRequest payload. An empty agent_id asks for automatic routing.
type AssignRequest struct {
	AgentID  *string `json:"agent_id" validate:"omitempty,min=1,max=64"`
	Override bool    `json:"override"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID              string                `json:"id"`
	RequesterID     string                `json:"requester_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        string                `json:"category"`
	Priority        domain.TicketPriority `json:"priority"`
	UrgencyLevel    domain.UrgencyLevel   `json:"urgency_level"`
	Status          domain.TicketStatus   `json:"status"`
	RequiredSkills  []string              `json:"required_skills"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	SLADueDate      *time.Time            `json:"sla_due_date"`
	SLAWarningAt    *time.Time            `json:"sla_warning_at"`
	ResponseDueAt   *time.Time            `json:"response_due_at"`
	SLAWarningSent  bool                  `json:"sla_warning_sent"`
	SLABreached     bool                  `json:"sla_breached"`
	SLARuleMissing  bool                  `json:"sla_rule_missing"`
	Escalated       bool                  `json:"escalated"`
	EscalationCount int                   `json:"escalation_count"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	EscalatedAt     *time.Time            `json:"escalated_at,omitempty"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
}

// WarningResponse describes a recoverable outcome, such as no agent being
// available, attached to an otherwise successful request.
type WarningResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateTicketResponse payload.
type CreateTicketResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Warnings []WarningResponse `json:"warnings"`
}

// TimelineEntryResponse is one audit entry.
type TimelineEntryResponse struct {
	ID        string                   `json:"id"`
	Seq       int64                    `json:"seq"`
	Type      domain.TimelineEventType `json:"type"`
	ActorID   string                   `json:"actor_id"`
	ActorRole domain.Role              `json:"actor_role"`
	Timestamp time.Time                `json:"timestamp"`
	Payload   map[string]any           `json:"payload"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	skills := t.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	return TicketResponse{
		ID:              t.ID,
		RequesterID:     t.RequesterID,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Priority:        t.Priority,
		UrgencyLevel:    t.UrgencyLevel,
		Status:          t.Status,
		RequiredSkills:  skills,
		AssignedAgentID: t.AssignedAgentID,
		SLADueDate:      t.SLADueDate,
		SLAWarningAt:    t.SLAWarningAt,
		ResponseDueAt:   t.ResponseDueAt,
		SLAWarningSent:  t.SLAWarningSent,
		SLABreached:     t.SLABreached,
		SLARuleMissing:  t.SLARuleMissing,
		Escalated:       t.Escalated,
		EscalationCount: t.EscalationCount,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		EscalatedAt:     t.EscalatedAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
	}
}

// NewTimelineEntryResponse maps an audit entry.
func NewTimelineEntryResponse(e *domain.TimelineEvent) TimelineEntryResponse {
	return TimelineEntryResponse{
		ID:        e.ID,
		Seq:       e.Seq,
		Type:      e.Type,
		ActorID:   e.ActorID,
		ActorRole: e.ActorRole,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	}
}
