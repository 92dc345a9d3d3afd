package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

var (
	managerActor = domain.Actor{ID: "mgr-1", Role: domain.RoleManager}
	adminActor   = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	clientActor  = domain.Actor{ID: "client-1", Role: domain.RoleClient}
	otherClient  = domain.Actor{ID: "client-2", Role: domain.RoleClient}
)

func agentActor(id string) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleAgent}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) ofType(kind events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	clock      *testClock
	tickets    repository.TicketRepository
	agents     repository.AgentRepository
	timeline   repository.TimelineRepository
	rules      repository.SLARuleRepository
	dispatcher events.Dispatcher
	recorded   *eventRecorder

	lifecycle  *Lifecycle
	categories *CategoryService
	policy     *SLAPolicyService
	agentSvc   *AgentService
	assignment *AssignmentService
	escalation *EscalationService
	ticketSvc  *TicketService
	sla        *SLAClock
}

// newHarness wires every service over memory repositories with categories
// Network and Billing and default rules for all three urgency levels:
// resolution 4h/24h/72h with warnings 1h/4h/8h ahead.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    newTestClock(),
		tickets:  repository.NewMemoryTicketRepository(),
		agents:   repository.NewMemoryAgentRepository(),
		timeline: repository.NewMemoryTimelineRepository(),
		rules:    repository.NewMemorySLARuleRepository(),
		recorded: &eventRecorder{},
	}
	logger := zap.NewNop()
	h.dispatcher = events.NewInMemoryDispatcher(logger)
	h.dispatcher.SubscribeAll(h.recorded.handle)

	h.lifecycle = NewLifecycle(LifecycleDependencies{
		TicketRepo:   h.tickets,
		TimelineRepo: h.timeline,
		Dispatcher:   h.dispatcher,
		Logger:       logger,
		Clock:        h.clock.Now,
		LockWait:     time.Second,
	})
	h.categories = NewCategoryService(repository.NewMemoryCategoryRepository(), h.clock.Now)
	h.policy = NewSLAPolicyService(h.rules, h.clock.Now)
	h.agentSvc = NewAgentService(AgentDependencies{
		AgentRepo:  h.agents,
		Categories: h.categories,
		Dispatcher: h.dispatcher,
		Logger:     logger,
		Clock:      h.clock.Now,
	})
	h.assignment = NewAssignmentService(AssignmentDependencies{
		Lifecycle:  h.lifecycle,
		AgentRepo:  h.agents,
		TicketRepo: h.tickets,
		Logger:     logger,
	})
	h.escalation = NewEscalationService(EscalationDependencies{
		Lifecycle:  h.lifecycle,
		Assignment: h.assignment,
		AgentRepo:  h.agents,
		Logger:     logger,
	})
	h.ticketSvc = NewTicketService(TicketDependencies{
		Lifecycle:    h.lifecycle,
		TicketRepo:   h.tickets,
		TimelineRepo: h.timeline,
		Policy:       h.policy,
		Categories:   h.categories,
		Assignment:   h.assignment,
		Logger:       logger,
	})
	h.sla = NewSLAClock(SLAClockDependencies{
		Lifecycle:  h.lifecycle,
		TicketRepo: h.tickets,
		Escalation: h.escalation,
		Assignment: h.assignment,
		Logger:     logger,
		Config:     SLAClockConfig{Concurrency: 4},
	})

	ctx := context.Background()
	for _, name := range []string{"Network", "Billing"} {
		_, err := h.categories.CreateCategory(ctx, CategoryInput{Name: name})
		require.NoError(t, err)
	}
	for _, rule := range []SLARuleInput{
		{UrgencyLevel: 1, ResponseTimeHours: 1, ResolutionTimeHours: 4, WarningTimeHours: 1, EscalationTimeHours: 2},
		{UrgencyLevel: 2, ResponseTimeHours: 4, ResolutionTimeHours: 24, WarningTimeHours: 4, EscalationTimeHours: 8},
		{UrgencyLevel: 3, ResponseTimeHours: 8, ResolutionTimeHours: 72, WarningTimeHours: 8, EscalationTimeHours: 24},
	} {
		_, err := h.policy.UpsertRule(ctx, rule)
		require.NoError(t, err)
	}
	return h
}

func (h *harness) addAgent(t *testing.T, id string, level, capacity int, categories ...string) *domain.Agent {
	t.Helper()
	agent, err := h.agentSvc.CreateAgent(context.Background(), AgentInput{
		ID:          id,
		Name:        id,
		Email:       id + "@helpdesk.test",
		Role:        string(domain.RoleAgent),
		Categories:  categories,
		MaxCapacity: capacity,
		AgentLevel:  level,
	})
	require.NoError(t, err)
	return agent
}

func (h *harness) addManager(t *testing.T, id string) *domain.Agent {
	t.Helper()
	agent, err := h.agentSvc.CreateAgent(context.Background(), AgentInput{
		ID:          id,
		Name:        id,
		Email:       id + "@helpdesk.test",
		Role:        string(domain.RoleManager),
		MaxCapacity: 10,
		AgentLevel:  1,
	})
	require.NoError(t, err)
	return agent
}

func (h *harness) createTicket(t *testing.T, actor domain.Actor, category string, level int) *CreateTicketResult {
	t.Helper()
	result, err := h.ticketSvc.CreateTicket(context.Background(), actor, CreateTicketInput{
		Title:        "Cannot reach the office network",
		Description:  "Connection drops every few minutes",
		Category:     category,
		UrgencyLevel: level,
	})
	require.NoError(t, err)
	return result
}

func (h *harness) ticket(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func (h *harness) agent(t *testing.T, id string) *domain.Agent {
	t.Helper()
	agent, err := h.agents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return agent
}

func (h *harness) timelineTypes(t *testing.T, ticketID string) []domain.TimelineEventType {
	t.Helper()
	entries, err := h.timeline.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	out := make([]domain.TimelineEventType, len(entries))
	for i, e := range entries {
		out[i] = e.Type
	}
	return out
}

// requireCountsConsistent checks every agent's load against the tickets
// that actually hold one of its slots.
func (h *harness) requireCountsConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	agents, err := h.agents.List(ctx, repository.AgentFilter{})
	require.NoError(t, err)
	for _, a := range agents {
		held, err := h.tickets.CountActiveByAgent(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, held, a.CurrentTicketCount, "agent %s load", a.ID)
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}
