package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
	"github.com/Dev-Manje/helpdesk/pkg/util/validate"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	lifecycle  *Lifecycle
	tickets    repository.TicketRepository
	timeline   repository.TimelineRepository
	policy     *SLAPolicyService
	categories *CategoryService
	assignment *AssignmentService
	logger     *zap.Logger
	validator  *validate.Validator
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Lifecycle    *Lifecycle
	TicketRepo   repository.TicketRepository
	TimelineRepo repository.TimelineRepository
	Policy       *SLAPolicyService
	Categories   *CategoryService
	Assignment   *AssignmentService
	Logger       *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		lifecycle:  deps.Lifecycle,
		tickets:    deps.TicketRepo,
		timeline:   deps.TimelineRepo,
		policy:     deps.Policy,
		categories: deps.Categories,
		assignment: deps.Assignment,
		logger:     deps.Logger,
		validator:  validate.Default,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	RequesterID    string   `json:"requester_id" validate:"omitempty,max=64"`
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"required,max=10000"`
	Category       string   `json:"category" validate:"required,max=64"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	UrgencyLevel   int      `json:"urgency_level" validate:"min=1,max=3"`
	RequiredSkills []string `json:"required_skills" validate:"dive,required,max=64"`
}

// CreateTicketResult carries the ticket plus recoverable outcomes such as
// NO_ELIGIBLE_AGENT or SLA_RULE_MISSING.
type CreateTicketResult struct {
	Ticket   *domain.Ticket
	Warnings []*apperrors.DomainError
}

// TicketListFilter narrows ListTickets.
type TicketListFilter struct {
	Statuses      []domain.TicketStatus
	UrgencyLevels []domain.UrgencyLevel
	AssigneeID    *string
	Category      *string
	Breached      *bool
	Limit         int
	Offset        int
}

// CreateTicket opens a ticket, computes its SLA and tries to route it, all
// in one locked step.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*CreateTicketResult, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.RequiredSkills = normalizeSet(input.RequiredSkills, true)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	if err := s.categories.requireAll(ctx, "category", []string{input.Category}); err != nil {
		return nil, err
	}

	requester := actor.ID
	if actor.Role != domain.RoleClient && input.RequesterID != "" {
		requester = input.RequesterID
	}
	priority := domain.TicketPriority(input.Priority)
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		RequesterID:    requester,
		Title:          input.Title,
		Description:    input.Description,
		Category:       input.Category,
		Priority:       priority,
		UrgencyLevel:   domain.UrgencyLevel(input.UrgencyLevel),
		Status:         domain.TicketStatusOpen,
		RequiredSkills: input.RequiredSkills,
	}

	result := &CreateTicketResult{}
	created, err := s.lifecycle.Create(ctx, actor, ticket, func(tx *ticketTx) error {
		t := tx.ticket
		tx.record(domain.TimelineCreated, map[string]any{
			"category":      t.Category,
			"priority":      string(t.Priority),
			"urgency_level": int(t.UrgencyLevel),
		})
		hasRule, err := s.policy.applySLA(tx.ctx, tx, "created")
		if err != nil {
			return err
		}
		tx.emit(events.EventTicketCreated, "", events.TicketCreatedPayload{
			Category:     t.Category,
			Priority:     t.Priority,
			UrgencyLevel: t.UrgencyLevel,
			Title:        t.Title,
			SLADueDate:   t.SLADueDate,
		})
		if !hasRule {
			result.Warnings = append(result.Warnings, apperrors.ToDomainError(apperrors.NewSLARuleMissing(int(t.UrgencyLevel))))
			tx.emit(events.EventSLARuleMissing, "", events.SLAPayload{UrgencyLevel: t.UrgencyLevel})
		}

		if err := s.assignment.routeLocked(tx, false); err != nil {
			if !apperrors.HasCode(err, apperrors.CodeNoEligibleAgent) {
				return err
			}
			result.Warnings = append(result.Warnings, apperrors.ToDomainError(err))
			tx.record(domain.TimelineAssignmentPending, map[string]any{"reason": "no eligible agent"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Ticket = created
	return result, nil
}

// UpdateTicketStatus applies a caller event. Assign and escalate have their
// own operations. Terminal transitions release the agent's slot.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, actor domain.Actor, ticketID string, event domain.TicketEvent, comment string) (*domain.Ticket, error) {
	if !event.CallerEvent() {
		return nil, apperrors.NewValidationError("unsupported event", map[string]any{"event": string(event)})
	}
	comment = strings.TrimSpace(comment)
	reroute := false
	updated, err := s.lifecycle.Mutate(ctx, "update_status", actor, ticketID, func(tx *ticketTx) error {
		if err := authorizeStatusEvent(actor, tx.ticket, event); err != nil {
			return err
		}
		if event == domain.EventReopen {
			var err error
			reroute, err = s.reopenLocked(tx, comment)
			return err
		}

		holder := ""
		if tx.ticket.HoldsCapacity() {
			holder = *tx.ticket.AssignedAgentID
		}
		if err := tx.transition(event, comment); err != nil {
			return err
		}
		if holder != "" && tx.ticket.Status.Terminal() {
			tx.onCommit(func(ctx context.Context) { s.assignment.release(ctx, holder) })
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reroute {
		routed, err := s.assignment.AutoAssign(ctx, ticketID)
		switch {
		case err == nil:
			return routed, nil
		case apperrors.HasCode(err, apperrors.CodeNoEligibleAgent),
			apperrors.HasCode(err, apperrors.CodeConcurrentModification):
		default:
			s.logger.Warn("reroute after reopen failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
	return updated, nil
}

// reopenLocked moves a resolved ticket back to work. The previous agent
// takes it back only while available and below capacity; otherwise the
// ticket returns to open for routing.
func (s *TicketService) reopenLocked(tx *ticketTx, comment string) (bool, error) {
	t := tx.ticket
	if _, ok := domain.NextStatus(t.Status, domain.EventReopen); !ok {
		return false, apperrors.NewInvalidTransition(string(t.Status), string(domain.EventReopen))
	}
	if t.AssignedAgentID != nil {
		agentID := *t.AssignedAgentID
		_, err := s.assignment.agents.Acquire(tx.ctx, agentID, repository.AcquireManual, tx.now)
		switch {
		case err == nil:
			tx.onRollback(func(ctx context.Context) { s.assignment.release(ctx, agentID) })
			tx.setStatus(domain.TicketStatusInProgress, domain.EventReopen, comment)
			return false, nil
		case errors.Is(err, repository.ErrNotAcquired), errors.Is(err, repository.ErrNotFound):
			t.AssignedAgentID = nil
			tx.record(domain.TimelineUnassigned, map[string]any{
				"agent_id": agentID,
				"reason":   "agent unavailable on reopen",
			})
		default:
			return false, apperrors.MapError(err)
		}
	}
	tx.setStatus(domain.TicketStatusOpen, domain.EventReopen, comment)
	return true, nil
}

// UpdateUrgency changes the urgency level and recomputes deadlines from
// created_at. Unassigned tickets are routed again under the new tier.
func (s *TicketService) UpdateUrgency(ctx context.Context, actor domain.Actor, ticketID string, level domain.UrgencyLevel) (*domain.Ticket, error) {
	if !level.Valid() {
		return nil, apperrors.NewValidationError("invalid urgency level", map[string]any{"urgency_level": int(level)})
	}
	return s.lifecycle.Mutate(ctx, "update_urgency", actor, ticketID, func(tx *ticketTx) error {
		t := tx.ticket
		if err := authorizeStaffWrite(actor, t); err != nil {
			return err
		}
		if t.Status.Terminal() {
			return apperrors.NewInvalidTransition(string(t.Status), "update_urgency")
		}
		if t.UrgencyLevel == level {
			return nil
		}
		previous := t.UrgencyLevel
		t.UrgencyLevel = level
		tx.dirty = true
		tx.record(domain.TimelineUrgencyChanged, map[string]any{
			"from": int(previous),
			"to":   int(level),
		})
		hasRule, err := s.policy.applySLA(tx.ctx, tx, "urgency_changed")
		if err != nil {
			return err
		}
		if !hasRule {
			tx.emit(events.EventSLARuleMissing, "", events.SLAPayload{UrgencyLevel: level})
		}
		if t.AssignedAgentID == nil && (t.Status == domain.TicketStatusOpen || t.Status == domain.TicketStatusEscalated) {
			err := s.assignment.routeLocked(tx, t.Status == domain.TicketStatusEscalated)
			if err != nil && !apperrors.HasCode(err, apperrors.CodeNoEligibleAgent) {
				return err
			}
		}
		return nil
	})
}

// RecordComment appends a comment to the timeline. It has no SLA effect.
// Clients cannot post internal notes.
func (s *TicketService) RecordComment(ctx context.Context, actor domain.Actor, ticketID, body string, internal bool) (*domain.TimelineEvent, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", map[string]any{"body": "required"})
	}
	if internal && !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("internal notes are staff only")
	}
	var entry *domain.TimelineEvent
	_, err := s.lifecycle.Mutate(ctx, "comment", actor, ticketID, func(tx *ticketTx) error {
		if err := authorizeRead(actor, tx.ticket); err != nil {
			return err
		}
		if tx.ticket.Status == domain.TicketStatusClosed {
			return apperrors.NewInvalidTransition(string(tx.ticket.Status), "comment")
		}
		entry = tx.record(domain.TimelineCommentAdded, map[string]any{
			"body":     body,
			"internal": internal,
		})
		tx.emit(events.EventCommentAdded, "", events.CommentAddedPayload{
			Internal:    internal,
			BodyPreview: preview(body, 140),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.lifecycle.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns tickets visible to actor. Clients only see their own.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		AssigneeID:    filter.AssigneeID,
		Category:      filter.Category,
		Statuses:      filter.Statuses,
		UrgencyLevels: filter.UrgencyLevels,
		Breached:      filter.Breached,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}
	if actor.Role == domain.RoleClient {
		repoFilter.RequesterID = &actor.ID
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Timeline returns the audit trail in acceptance order. Internal notes are
// hidden from clients.
func (s *TicketService) Timeline(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TimelineEvent, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.timeline.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if actor.Role != domain.RoleClient {
		return entries, nil
	}
	visible := entries[:0]
	for _, e := range entries {
		if internal, _ := e.Payload["internal"].(bool); internal {
			continue
		}
		visible = append(visible, e)
	}
	return visible, nil
}

func authorizeRead(actor domain.Actor, t *domain.Ticket) error {
	switch actor.Role {
	case domain.RoleClient:
		if t.RequesterID != actor.ID {
			return apperrors.NewForbidden("not your ticket")
		}
		return nil
	case domain.RoleAgent, domain.RoleManager, domain.RoleAdmin, domain.RoleSystem:
		return nil
	}
	return apperrors.NewForbidden("access denied")
}

func authorizeStaffWrite(actor domain.Actor, t *domain.Ticket) error {
	switch actor.Role {
	case domain.RoleManager, domain.RoleAdmin, domain.RoleSystem:
		return nil
	case domain.RoleAgent:
		if t.IsAssignedTo(actor.ID) {
			return nil
		}
		return apperrors.NewForbidden("ticket not assigned to you")
	}
	return apperrors.NewForbidden("staff role required")
}

// authorizeStatusEvent: clients close, reopen or resume their own tickets;
// agents drive tickets assigned to them; supervisors drive any ticket.
func authorizeStatusEvent(actor domain.Actor, t *domain.Ticket, event domain.TicketEvent) error {
	if actor.Role != domain.RoleClient {
		return authorizeStaffWrite(actor, t)
	}
	if t.RequesterID != actor.ID {
		return apperrors.NewForbidden("not your ticket")
	}
	switch event {
	case domain.EventClose, domain.EventReopen, domain.EventResume:
		return nil
	}
	return apperrors.NewForbidden("clients may only close, reopen or resume")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
