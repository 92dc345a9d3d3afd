package service

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/observability"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

// Escalation reasons.
const (
	ReasonManual = "manual"
	ReasonBreach = "breach"
)

// EscalationService moves tickets into escalated, re-routes them with an
// elevated search and notifies the agent and manager chain.
type EscalationService struct {
	lifecycle  *Lifecycle
	assignment *AssignmentService
	agents     repository.AgentRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	Lifecycle  *Lifecycle
	Assignment *AssignmentService
	AgentRepo  repository.AgentRepository
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	s := &EscalationService{
		lifecycle:  deps.Lifecycle,
		assignment: deps.Assignment,
		agents:     deps.AgentRepo,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// EscalateTicket is the manual escalate action. Clients may escalate their
// own tickets, agents the tickets assigned to them, supervisors any.
func (s *EscalationService) EscalateTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.lifecycle.Mutate(ctx, "escalate", actor, ticketID, func(tx *ticketTx) error {
		switch actor.Role {
		case domain.RoleClient:
			if tx.ticket.RequesterID != actor.ID {
				return apperrors.NewForbidden("not your ticket")
			}
		case domain.RoleAgent:
			if !tx.ticket.IsAssignedTo(actor.ID) {
				return apperrors.NewForbidden("ticket not assigned to you")
			}
		case domain.RoleManager, domain.RoleAdmin, domain.RoleSystem:
		default:
			return apperrors.NewForbidden("role cannot escalate")
		}
		return s.escalateLocked(tx, ReasonManual)
	})
}

// escalateLocked escalates the ticket held by tx. An already escalated
// ticket only gets an audit entry.
func (s *EscalationService) escalateLocked(tx *ticketTx, reason string) error {
	t := tx.ticket
	if t.Status == domain.TicketStatusEscalated {
		tx.record(domain.TimelineEscalationRepeat, map[string]any{
			"reason":           reason,
			"escalation_count": t.EscalationCount,
		})
		return nil
	}
	if err := tx.transition(domain.EventEscalate, ""); err != nil {
		return err
	}

	previous := ""
	if t.AssignedAgentID != nil {
		previous = *t.AssignedAgentID
	}
	t.Escalated = true
	t.EscalationCount++
	t.EscalatedAt = timePtr(tx.now)
	tx.record(domain.TimelineEscalated, map[string]any{
		"reason":           reason,
		"escalation_count": t.EscalationCount,
	})
	s.metrics.Escalation(tx.ctx, reason)

	if err := s.assignment.routeLocked(tx, true); err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNoEligibleAgent) {
			return err
		}
		tx.record(domain.TimelineAssignmentPending, map[string]any{"reason": "no agent for elevated routing"})
	}

	assignee := ""
	if t.AssignedAgentID != nil && *t.AssignedAgentID != previous {
		assignee = *t.AssignedAgentID
	}
	tx.emit(events.EventTicketEscalated, assignee, events.TicketEscalatedPayload{
		Reason:          reason,
		EscalationCount: t.EscalationCount,
		AgentID:         assignee,
		PreviousAgentID: previous,
		Recipients:      s.recipients(tx.ctx, assignee, previous),
	})
	return nil
}

// warnLocked emits the one SLA warning for the ticket. No state besides
// the sent flag changes.
func (s *EscalationService) warnLocked(tx *ticketTx) {
	t := tx.ticket
	t.SLAWarningSent = true
	tx.dirty = true
	assignee := ""
	if t.AssignedAgentID != nil {
		assignee = *t.AssignedAgentID
	}
	tx.record(domain.TimelineSLAWarning, map[string]any{
		"urgency_level": int(t.UrgencyLevel),
	})
	tx.emit(events.EventSLAWarning, assignee, events.SLAPayload{
		UrgencyLevel: t.UrgencyLevel,
		SLADueDate:   t.SLADueDate,
		AgentID:      assignee,
		Recipients:   s.recipients(tx.ctx, assignee, ""),
	})
	s.metrics.SLASignal(tx.ctx, "warning", int(t.UrgencyLevel))
}

// recipients is the notification chain: involved agents first, then every
// available manager.
func (s *EscalationService) recipients(ctx context.Context, agentIDs ...string) []string {
	out := make([]string, 0, 4)
	for _, id := range agentIDs {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	managers, err := s.agents.List(ctx, repository.AgentFilter{
		Roles:    []domain.Role{domain.RoleManager},
		Statuses: []domain.AgentStatus{domain.AgentStatusActive, domain.AgentStatusBusy},
	})
	if err != nil {
		s.logger.Warn("manager lookup failed", zap.Error(err))
		return out
	}
	for _, m := range managers {
		if !slices.Contains(out, m.ID) {
			out = append(out, m.ID)
		}
	}
	return out
}
