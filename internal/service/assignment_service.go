package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/observability"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

const reasonAlreadyRouted = "ticket already routed"

// Assignment methods recorded in the timeline and events.
const (
	MethodAuto     = "auto"
	MethodElevated = "elevated"
	MethodManual   = "manual"
	MethodOverride = "override"
)

// AssignmentService routes tickets to agents.
type AssignmentService struct {
	lifecycle *Lifecycle
	agents    repository.AgentRepository
	tickets   repository.TicketRepository
	logger    *zap.Logger
	metrics   *observability.Metrics
	debounce  time.Duration
	retry     chan struct{}
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Lifecycle     *Lifecycle
	AgentRepo     repository.AgentRepository
	TicketRepo    repository.TicketRepository
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	RetryDebounce time.Duration
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	s := &AssignmentService{
		lifecycle: deps.Lifecycle,
		agents:    deps.AgentRepo,
		tickets:   deps.TicketRepo,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		debounce:  deps.RetryDebounce,
		retry:     make(chan struct{}, 1),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// RetryReport summarises one pass over unassigned tickets.
type RetryReport struct {
	Attempted int `json:"attempted"`
	Assigned  int `json:"assigned"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// AssignTicket routes automatically when agentID is nil. Otherwise it is
// a supervisor reassignment that bypasses category and level filters;
// override additionally ignores the target's capacity.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID string, agentID *string, override bool) (*domain.Ticket, error) {
	if agentID == nil {
		if !actor.Role.IsStaff() && actor.Role != domain.RoleSystem {
			return nil, apperrors.NewForbidden("staff role required")
		}
		return s.autoAssign(ctx, actor, ticketID)
	}
	if !actor.Role.IsSupervisor() {
		return nil, apperrors.NewForbidden("manager role required for reassignment")
	}
	return s.lifecycle.Mutate(ctx, "reassign", actor, ticketID, func(tx *ticketTx) error {
		return s.reassignLocked(tx, *agentID, override)
	})
}

// AutoAssign routes an unassigned ticket on behalf of the system.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.autoAssign(ctx, domain.SystemActor, ticketID)
}

func (s *AssignmentService) autoAssign(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.lifecycle.Mutate(ctx, "auto_assign", actor, ticketID, func(tx *ticketTx) error {
		t := tx.ticket
		if t.AssignedAgentID != nil || (t.Status != domain.TicketStatusOpen && t.Status != domain.TicketStatusEscalated) {
			return apperrors.NewConcurrentModification("ticket", map[string]any{
				"ticket_id": t.ID,
				"status":    string(t.Status),
				"reason":    reasonAlreadyRouted,
			})
		}
		return s.routeLocked(tx, t.Status == domain.TicketStatusEscalated)
	})
}

// routeLocked picks the best candidate and takes one of its slots. Agents
// that fill up between listing and acquiring are skipped. Returns a
// NO_ELIGIBLE_AGENT error when nobody qualifies.
func (s *AssignmentService) routeLocked(tx *ticketTx, elevated bool) error {
	method := MethodAuto
	if elevated {
		method = MethodElevated
	}
	candidates, err := s.candidates(tx.ctx, tx.ticket, elevated)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		agent, err := s.agents.Acquire(tx.ctx, candidate.ID, repository.AcquireAuto, tx.now)
		if errors.Is(err, repository.ErrNotAcquired) || errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := s.placeLocked(tx, agent, method, false); err != nil {
			return err
		}
		s.metrics.Assignment(tx.ctx, method, "assigned")
		return nil
	}
	s.metrics.Assignment(tx.ctx, method, "no_eligible_agent")
	return apperrors.NewNoEligibleAgent(tx.ticket.ID)
}

// reassignLocked handles supervisor reassignment.
func (s *AssignmentService) reassignLocked(tx *ticketTx, agentID string, override bool) error {
	t := tx.ticket
	if t.Status.Terminal() {
		return apperrors.NewInvalidTransition(string(t.Status), string(domain.EventAssign))
	}
	target, err := s.agents.GetByID(tx.ctx, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return apperrors.MapError(err)
	}
	if !target.Status.Available() {
		return apperrors.NewConflict("agent unavailable", map[string]any{
			"agent_id": agentID,
			"status":   string(target.Status),
		})
	}
	if t.IsAssignedTo(agentID) {
		return nil
	}

	mode, method := repository.AcquireManual, MethodManual
	if override {
		mode, method = repository.AcquireOverride, MethodOverride
	}
	agent, err := s.agents.Acquire(tx.ctx, agentID, mode, tx.now)
	if err != nil {
		if !errors.Is(err, repository.ErrNotAcquired) {
			return apperrors.MapError(err)
		}
		s.metrics.Assignment(tx.ctx, method, "rejected")
		latest, getErr := s.agents.GetByID(tx.ctx, agentID)
		if getErr == nil && !latest.Status.Available() {
			return apperrors.NewConflict("agent unavailable", map[string]any{"agent_id": agentID})
		}
		if getErr == nil {
			target = latest
		}
		return apperrors.NewCapacityExceeded(agentID, target.CurrentTicketCount, target.MaxCapacity)
	}
	if err := s.placeLocked(tx, agent, method, override); err != nil {
		return err
	}
	s.metrics.Assignment(tx.ctx, method, "assigned")
	return nil
}

// placeLocked writes agent onto the ticket after a slot was acquired. The
// slot is returned if the ticket cannot be saved; the previous holder's
// slot is released once it is.
func (s *AssignmentService) placeLocked(tx *ticketTx, agent *domain.Agent, method string, override bool) error {
	t := tx.ticket
	agentID := agent.ID
	tx.onRollback(func(ctx context.Context) { s.release(ctx, agentID) })

	previous := ""
	if t.HoldsCapacity() {
		previous = *t.AssignedAgentID
		tx.onCommit(func(ctx context.Context) { s.release(ctx, previous) })
	}

	t.AssignedAgentID = &agentID
	tx.dirty = true
	if t.Status == domain.TicketStatusOpen || t.Status == domain.TicketStatusEscalated {
		if err := tx.transition(domain.EventAssign, ""); err != nil {
			return err
		}
	}

	kind := domain.TimelineAssigned
	switch method {
	case MethodManual:
		kind = domain.TimelineManualAssigned
	case MethodOverride:
		kind = domain.TimelineOverrideAssigned
	}
	payload := map[string]any{
		"agent_id":             agentID,
		"method":               method,
		"current_ticket_count": agent.CurrentTicketCount,
		"max_capacity":         agent.MaxCapacity,
	}
	if previous != "" {
		payload["previous_agent_id"] = previous
	}
	tx.record(kind, payload)
	tx.emit(events.EventTicketAssigned, agentID, events.TicketAssignedPayload{
		AgentID:         agentID,
		PreviousAgentID: previous,
		Method:          method,
		Override:        override,
	})
	return nil
}

// release returns one slot. Failures are logged; the count can be
// reconciled against CountActiveByAgent.
func (s *AssignmentService) release(ctx context.Context, agentID string) {
	if _, err := s.agents.Release(ctx, agentID); err != nil {
		s.logger.Error("agent release failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

// candidates returns eligible agents in rank order.
//
// Normal routing requires an active agent role below capacity, authorised
// for the urgency tier, whose categories contain the ticket's category.
// Agents without categories are used only when no authorised agent lists
// the category at all, regardless of load. Elevated routing drops the tier
// filter, pools both groups, prefers senior agents and never returns the
// current assignee.
func (s *AssignmentService) candidates(ctx context.Context, t *domain.Ticket, elevated bool) ([]domain.Agent, error) {
	agents, err := s.agents.List(ctx, repository.AgentFilter{
		Roles:    []domain.Role{domain.RoleAgent},
		Statuses: []domain.AgentStatus{domain.AgentStatusActive, domain.AgentStatusBusy},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var categorized, general []domain.Agent
	categorizedExists := false
	for _, a := range agents {
		if !elevated && !a.AuthorizedFor(t.UrgencyLevel) {
			continue
		}
		if a.HandlesCategory(t.Category) {
			categorizedExists = true
		}
		if a.Status != domain.AgentStatusActive || !a.HasCapacity() || t.IsAssignedTo(a.ID) {
			continue
		}
		switch {
		case a.HandlesCategory(t.Category):
			categorized = append(categorized, a)
		case a.Unrestricted():
			general = append(general, a)
		}
	}

	pool := categorized
	switch {
	case elevated:
		pool = append(pool, general...)
	case !categorizedExists:
		pool = general
	}
	rankCandidates(pool, t, elevated)
	return pool, nil
}

// rankCandidates orders by skill overlap, then (elevated only) seniority,
// then load, then least recently assigned, then id.
func rankCandidates(pool []domain.Agent, t *domain.Ticket, elevated bool) {
	tokens := ticketTokens(t)
	text := strings.ToLower(t.Title + " " + t.Description)
	overlap := make(map[string]int, len(pool))
	for _, a := range pool {
		overlap[a.ID] = skillOverlap(a.Skills, tokens, text)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if overlap[a.ID] != overlap[b.ID] {
			return overlap[a.ID] > overlap[b.ID]
		}
		if elevated && a.AgentLevel != b.AgentLevel {
			return a.AgentLevel < b.AgentLevel
		}
		if a.CurrentTicketCount != b.CurrentTicketCount {
			return a.CurrentTicketCount < b.CurrentTicketCount
		}
		switch {
		case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
			return true
		case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
			return false
		case a.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
			return a.LastAssignedAt.Before(*b.LastAssignedAt)
		}
		return a.ID < b.ID
	})
}

func ticketTokens(t *domain.Ticket) map[string]struct{} {
	tokens := make(map[string]struct{})
	add := func(s string) {
		for _, field := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			tokens[field] = struct{}{}
		}
	}
	tokens[strings.ToLower(strings.TrimSpace(t.Category))] = struct{}{}
	for _, skill := range t.RequiredSkills {
		tokens[strings.ToLower(strings.TrimSpace(skill))] = struct{}{}
	}
	add(t.Category)
	add(t.Title)
	add(t.Description)
	return tokens
}

// skillOverlap counts agent skills found among tokens. Multi-word skills
// also match as a phrase in text.
func skillOverlap(skills []string, tokens map[string]struct{}, text string) int {
	n := 0
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" {
			continue
		}
		if _, ok := tokens[skill]; ok {
			n++
			continue
		}
		if strings.ContainsRune(skill, ' ') && strings.Contains(text, skill) {
			n++
		}
	}
	return n
}

// RequestRetry schedules a retry pass without blocking. Bursts of requests
// collapse into one pass.
func (s *AssignmentService) RequestRetry() {
	select {
	case s.retry <- struct{}{}:
	default:
	}
}

// RetryPending attempts to route every unassigned open or escalated
// ticket, most urgent and oldest first. It never stops on one failure.
func (s *AssignmentService) RetryPending(ctx context.Context) RetryReport {
	var report RetryReport
	ids, err := s.tickets.ListUnassignedIDs(ctx)
	if err != nil {
		s.logger.Error("list unassigned tickets failed", zap.Error(err))
		report.Failed++
		return report
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		err := s.retryAutoAssign(ctx, id)
		switch {
		case err == nil:
			report.Assigned++
		case apperrors.HasCode(err, apperrors.CodeNoEligibleAgent):
			report.Pending++
		case apperrors.HasCode(err, apperrors.CodeConcurrentModification):
			// Routed or changed by someone else since listing.
		default:
			report.Failed++
			s.logger.Warn("assignment retry failed", zap.String("ticket_id", id), zap.Error(err))
		}
	}
	if report.Assigned > 0 || report.Failed > 0 {
		s.logger.Info("assignment retry pass",
			zap.Int("attempted", report.Attempted),
			zap.Int("assigned", report.Assigned),
			zap.Int("pending", report.Pending),
			zap.Int("failed", report.Failed))
	}
	return report
}

// retryAutoAssign routes one ticket, backing off while its lock is
// contended. A ticket routed by someone else is not retried.
func (s *AssignmentService) retryAutoAssign(ctx context.Context, ticketID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = time.Second
	return backoff.Retry(func() error {
		_, err := s.AutoAssign(ctx, ticketID)
		if err == nil {
			return nil
		}
		if apperrors.HasCode(err, apperrors.CodeConcurrentModification) && !alreadyRouted(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
}

func alreadyRouted(err error) bool {
	domainErr := apperrors.ToDomainError(err)
	reason, _ := domainErr.Details["reason"].(string)
	return reason == reasonAlreadyRouted
}

// Run serves retry requests until ctx is done.
func (s *AssignmentService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.retry:
		}
		if s.debounce > 0 {
			timer := time.NewTimer(s.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			select {
			case <-s.retry:
			default:
			}
		}
		s.RetryPending(ctx)
	}
}

// RegisterHandlers requests a retry whenever capacity may have appeared:
// an agent changed, or a ticket released its agent.
func (s *AssignmentService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventAgentChanged, func(context.Context, events.Event) error {
		s.RequestRetry()
		return nil
	})
	dispatcher.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, event events.Event) error {
		if p, ok := event.Payload.(events.TicketStatusChangedPayload); ok && p.NewStatus.Terminal() {
			s.RequestRetry()
		}
		return nil
	})
	dispatcher.Subscribe(events.EventTicketAssigned, func(_ context.Context, event events.Event) error {
		if p, ok := event.Payload.(events.TicketAssignedPayload); ok && p.PreviousAgentID != "" {
			s.RequestRetry()
		}
		return nil
	})
}
