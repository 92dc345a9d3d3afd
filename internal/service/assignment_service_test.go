package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

func TestConcurrentCreationSingleSlot(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "a1", 1, 1, "Network")

	var wg sync.WaitGroup
	results := make([]*CreateTicketResult, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.ticketSvc.CreateTicket(context.Background(), clientActor, CreateTicketInput{
				Title:        "Network outage",
				Description:  "Floor 3 is down",
				Category:     "Network",
				UrgencyLevel: 2,
			})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	assigned, pending := 0, 0
	for _, res := range results {
		require.NotNil(t, res)
		switch res.Ticket.Status {
		case domain.TicketStatusAssigned:
			assigned++
		case domain.TicketStatusOpen:
			pending++
			require.Len(t, res.Warnings, 1)
			assert.Equal(t, apperrors.CodeNoEligibleAgent, res.Warnings[0].Code)
		}
	}
	assert.Equal(t, 1, assigned)
	assert.Equal(t, 1, pending)

	a1 := h.agent(t, "a1")
	assert.Equal(t, 1, a1.CurrentTicketCount)
	assert.Equal(t, domain.AgentStatusBusy, a1.Status)
	h.requireCountsConsistent(t)
}

func TestGeneralAgentsOnlyWhenCategoryHasNoAgent(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "net", 1, 1, "Network")
	h.addAgent(t, "general", 1, 5)

	first := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.NotNil(t, first.AssignedAgentID)
	assert.Equal(t, "net", *first.AssignedAgentID)

	// The category has an authorised agent, so the general pool stays
	// closed even though that agent is full.
	second := h.createTicket(t, clientActor, "Network", 2)
	assert.Nil(t, second.Ticket.AssignedAgentID)
	require.Len(t, second.Warnings, 1)
	assert.Equal(t, apperrors.CodeNoEligibleAgent, second.Warnings[0].Code)

	billing := h.createTicket(t, clientActor, "Billing", 2).Ticket
	require.NotNil(t, billing.AssignedAgentID)
	assert.Equal(t, "general", *billing.AssignedAgentID)
}

func TestRankingPrefersSkillsThenLoadThenLeastRecent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.agentSvc.CreateAgent(ctx, AgentInput{
		ID: "vpn", Name: "vpn", Email: "vpn@helpdesk.test", Role: "agent",
		Categories: []string{"Network"}, Skills: []string{"VPN"}, MaxCapacity: 1, AgentLevel: 1,
	})
	require.NoError(t, err)
	h.addAgent(t, "b", 1, 5, "Network")
	h.addAgent(t, "c", 1, 5, "Network")

	res, err := h.ticketSvc.CreateTicket(ctx, clientActor, CreateTicketInput{
		Title: "VPN tunnel drops", Description: "since this morning", Category: "Network", UrgencyLevel: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "vpn", *res.Ticket.AssignedAgentID)

	h.clock.Advance(time.Minute)
	assert.Equal(t, "b", *h.createTicket(t, clientActor, "Network", 2).Ticket.AssignedAgentID)
	h.clock.Advance(time.Minute)
	assert.Equal(t, "c", *h.createTicket(t, clientActor, "Network", 2).Ticket.AssignedAgentID)
	h.clock.Advance(time.Minute)
	// b and c carry one ticket each; b was assigned longer ago.
	assert.Equal(t, "b", *h.createTicket(t, clientActor, "Network", 2).Ticket.AssignedAgentID)
	h.requireCountsConsistent(t)
}

func TestUrgencyTierRestrictsAutoAssignment(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "tier2", 2, 5, "Network")

	urgent := h.createTicket(t, clientActor, "Network", 1)
	assert.Nil(t, urgent.Ticket.AssignedAgentID)

	moderate := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.NotNil(t, moderate.AssignedAgentID)
	assert.Equal(t, "tier2", *moderate.AssignedAgentID)
}

func TestOverrideReassignmentToFullAgent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 1, "Network")
	h.addAgent(t, "a2", 1, 1, "Network")

	t1 := h.createTicket(t, clientActor, "Network", 2).Ticket
	t2 := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.Equal(t, "a1", *t1.AssignedAgentID)
	require.Equal(t, "a2", *t2.AssignedAgentID)

	target := "a2"
	_, err := h.assignment.AssignTicket(ctx, managerActor, t1.ID, &target, false)
	requireCode(t, err, apperrors.CodeCapacityExceeded)
	assert.Equal(t, "a1", *h.ticket(t, t1.ID).AssignedAgentID)
	assert.Equal(t, 1, h.agent(t, "a2").CurrentTicketCount)

	moved, err := h.assignment.AssignTicket(ctx, managerActor, t1.ID, &target, true)
	require.NoError(t, err)
	assert.Equal(t, "a2", *moved.AssignedAgentID)
	assert.Equal(t, 2, h.agent(t, "a2").CurrentTicketCount)
	a1 := h.agent(t, "a1")
	assert.Equal(t, 0, a1.CurrentTicketCount)
	assert.Equal(t, domain.AgentStatusActive, a1.Status)
	assert.Contains(t, h.timelineTypes(t, t1.ID), domain.TimelineOverrideAssigned)
	h.requireCountsConsistent(t)

	// Over capacity agents are skipped by routing until they drain.
	next := h.createTicket(t, clientActor, "Network", 2).Ticket
	assert.Equal(t, "a1", *next.AssignedAgentID)

	_, err = h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a2"), t2.ID, domain.EventResolve, "")
	require.NoError(t, err)
	a2 := h.agent(t, "a2")
	assert.Equal(t, 1, a2.CurrentTicketCount)
	assert.Equal(t, domain.AgentStatusBusy, a2.Status)
}

func TestManualReassignmentRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 3, "Network")
	h.addAgent(t, "billing", 3, 3, "Billing")
	ticket := h.createTicket(t, clientActor, "Network", 1).Ticket

	target := "billing"
	_, err := h.assignment.AssignTicket(ctx, agentActor("a1"), ticket.ID, &target, false)
	requireCode(t, err, apperrors.CodeForbidden)

	missing := "ghost"
	_, err = h.assignment.AssignTicket(ctx, managerActor, ticket.ID, &missing, false)
	requireCode(t, err, apperrors.CodeNotFound)

	// Supervisors bypass category and tier filters.
	moved, err := h.assignment.AssignTicket(ctx, managerActor, ticket.ID, &target, false)
	require.NoError(t, err)
	assert.Equal(t, "billing", *moved.AssignedAgentID)
	assert.Contains(t, h.timelineTypes(t, ticket.ID), domain.TimelineManualAssigned)

	_, err = h.agentSvc.SetAgentStatus(ctx, "a1", domain.AgentStatusOffline)
	require.NoError(t, err)
	back := "a1"
	_, err = h.assignment.AssignTicket(ctx, managerActor, ticket.ID, &back, true)
	requireCode(t, err, apperrors.CodeConflict)
	h.requireCountsConsistent(t)
}

func TestRetryPendingAssignsFreedCapacity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 1, "Network")
	first := h.createTicket(t, clientActor, "Network", 2).Ticket
	h.clock.Advance(time.Minute)
	second := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.Nil(t, second.AssignedAgentID)

	report := h.assignment.RetryPending(ctx)
	assert.Equal(t, RetryReport{Attempted: 1, Pending: 1}, report)

	_, err := h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a1"), first.ID, domain.EventResolve, "")
	require.NoError(t, err)

	report = h.assignment.RetryPending(ctx)
	assert.Equal(t, 1, report.Assigned)
	assert.Equal(t, "a1", *h.ticket(t, second.ID).AssignedAgentID)
	h.requireCountsConsistent(t)
}

func TestAgentChangeTriggersRetry(t *testing.T) {
	h := newHarness(t)
	h.assignment.RegisterHandlers(h.dispatcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.assignment.Run(ctx)

	pending := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.Nil(t, pending.AssignedAgentID)

	h.addAgent(t, "late", 1, 2, "Network")

	require.Eventually(t, func() bool {
		ticket, err := h.tickets.GetByID(context.Background(), pending.ID)
		return err == nil && ticket.IsAssignedTo("late")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAutoAssignRejectsRoutedTicket(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "a1", 1, 2, "Network")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.assignment.AutoAssign(context.Background(), ticket.ID)
	requireCode(t, err, apperrors.CodeConcurrentModification)

	_, err = h.assignment.AssignTicket(context.Background(), clientActor, ticket.ID, nil, false)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestSkillOverlapMatchesPhrases(t *testing.T) {
	ticket := &domain.Ticket{
		Title:          "Printer jam on floor two",
		Description:    "the paper tray is stuck",
		Category:       "Hardware",
		RequiredSkills: []string{"printers"},
	}
	tokens := ticketTokens(ticket)
	text := "printer jam on floor two the paper tray is stuck"

	assert.Equal(t, 3, skillOverlap([]string{"Printers", "hardware", "paper tray", "linux"}, tokens, text))
	assert.Equal(t, 0, skillOverlap(nil, tokens, text))
}
