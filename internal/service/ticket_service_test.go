package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

func TestCreateTicketAssignsQualifiedAgent(t *testing.T) {
	h := newHarness(t)
	h.addAgent(t, "a1", 1, 2, "Network")

	result := h.createTicket(t, clientActor, "network", 2)
	ticket := result.Ticket

	assert.Empty(t, result.Warnings)
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	require.NotNil(t, ticket.AssignedAgentID)
	assert.Equal(t, "a1", *ticket.AssignedAgentID)
	assert.Equal(t, clientActor.ID, ticket.RequesterID)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.NotNil(t, ticket.SLADueDate)
	assert.Equal(t, ticket.CreatedAt.Add(24*time.Hour), *ticket.SLADueDate)
	assert.Equal(t, ticket.CreatedAt.Add(20*time.Hour), *ticket.SLAWarningAt)
	assert.Equal(t, ticket.CreatedAt.Add(4*time.Hour), *ticket.ResponseDueAt)

	assert.Equal(t, 1, h.agent(t, "a1").CurrentTicketCount)
	assert.Equal(t, []domain.TimelineEventType{
		domain.TimelineCreated,
		domain.TimelineStatusChanged,
		domain.TimelineAssigned,
	}, h.timelineTypes(t, ticket.ID))
	assert.Len(t, h.recorded.ofType(events.EventTicketCreated), 1)
	assert.Len(t, h.recorded.ofType(events.EventTicketAssigned), 1)
}

func TestCreateTicketWithoutAgentStaysOpen(t *testing.T) {
	h := newHarness(t)

	result := h.createTicket(t, clientActor, "Network", 1)

	assert.Equal(t, domain.TicketStatusOpen, result.Ticket.Status)
	assert.Nil(t, result.Ticket.AssignedAgentID)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, apperrors.CodeNoEligibleAgent, result.Warnings[0].Code)
	types := h.timelineTypes(t, result.Ticket.ID)
	assert.Equal(t, domain.TimelineAssignmentPending, types[len(types)-1])
}

func TestCreateTicketForcesClientAsRequester(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.ticketSvc.CreateTicket(ctx, clientActor, CreateTicketInput{
		RequesterID:  "someone-else",
		Title:        "Invoice",
		Description:  "Charged twice",
		Category:     "Billing",
		Priority:     "high",
		UrgencyLevel: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, clientActor.ID, result.Ticket.RequesterID)
	assert.Equal(t, domain.TicketPriorityHigh, result.Ticket.Priority)

	onBehalf, err := h.ticketSvc.CreateTicket(ctx, managerActor, CreateTicketInput{
		RequesterID:  "client-9",
		Title:        "Invoice",
		Description:  "Charged twice",
		Category:     "Billing",
		UrgencyLevel: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "client-9", onBehalf.Ticket.RequesterID)
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ticketSvc.CreateTicket(ctx, clientActor, CreateTicketInput{
		Title: "x", Description: "y", Category: "Hardware", UrgencyLevel: 1,
	})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.ticketSvc.CreateTicket(ctx, clientActor, CreateTicketInput{
		Title: "x", Description: "y", Category: "Network", UrgencyLevel: 4,
	})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.ticketSvc.CreateTicket(ctx, clientActor, CreateTicketInput{
		Title: "  ", Description: "y", Category: "Network", UrgencyLevel: 2,
	})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestDueDateIsCreatedAtPlusResolutionHours(t *testing.T) {
	h := newHarness(t)
	hours := map[int]time.Duration{1: 4 * time.Hour, 2: 24 * time.Hour, 3: 72 * time.Hour}

	for i := 0; i < 9; i++ {
		level := i%3 + 1
		h.clock.Advance(time.Duration(i*17) * time.Minute)
		ticket := h.createTicket(t, clientActor, "Billing", level).Ticket
		require.NotNil(t, ticket.SLADueDate)
		assert.Equal(t, ticket.CreatedAt.Add(hours[level]), *ticket.SLADueDate, "level %d", level)
		assert.False(t, ticket.SLAWarningAt.After(*ticket.SLADueDate))
	}
}

func TestDeletedRuleIsNotRetroactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.NotNil(t, before.SLADueDate)
	due := *before.SLADueDate

	require.NoError(t, h.policy.DeleteRule(ctx, domain.UrgencyModerate))
	h.clock.Advance(time.Hour)

	after := h.createTicket(t, clientActor, "Network", 2)
	assert.Nil(t, after.Ticket.SLADueDate)
	assert.Nil(t, after.Ticket.SLAWarningAt)
	assert.True(t, after.Ticket.SLARuleMissing)
	codes := make([]string, 0, len(after.Warnings))
	for _, w := range after.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, apperrors.CodeSLARuleMissing)
	assert.Contains(t, h.timelineTypes(t, after.Ticket.ID), domain.TimelineSLARuleMissing)
	assert.Len(t, h.recorded.ofType(events.EventSLARuleMissing), 1)

	reloaded := h.ticket(t, before.ID)
	require.NotNil(t, reloaded.SLADueDate)
	assert.Equal(t, due, *reloaded.SLADueDate)
	assert.False(t, reloaded.SLARuleMissing)

	err := h.policy.DeleteRule(ctx, domain.UrgencyModerate)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestResolveReleasesCapacityAndReopenReacquires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 1, "Network")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket
	assert.Equal(t, domain.AgentStatusBusy, h.agent(t, "a1").Status)

	_, err := h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a1"), ticket.ID, domain.EventStart, "")
	require.NoError(t, err)
	resolved, err := h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a1"), ticket.ID, domain.EventResolve, "fixed the switch")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.AssignedAgentID)
	assert.Equal(t, "a1", *resolved.AssignedAgentID)
	a1 := h.agent(t, "a1")
	assert.Equal(t, 0, a1.CurrentTicketCount)
	assert.Equal(t, domain.AgentStatusActive, a1.Status)
	h.requireCountsConsistent(t)

	reopened, err := h.ticketSvc.UpdateTicketStatus(ctx, clientActor, ticket.ID, domain.EventReopen, "still broken")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Equal(t, 1, h.agent(t, "a1").CurrentTicketCount)
	h.requireCountsConsistent(t)
}

func TestReopenNeverPushesPreviousAgentOverCapacity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 1, "Network")
	first := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a1"), first.ID, domain.EventResolve, "")
	require.NoError(t, err)
	second := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.NotNil(t, second.AssignedAgentID)
	assert.Equal(t, "a1", *second.AssignedAgentID)

	reopened, err := h.ticketSvc.UpdateTicketStatus(ctx, clientActor, first.ID, domain.EventReopen, "came back")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Nil(t, reopened.AssignedAgentID)
	assert.Contains(t, h.timelineTypes(t, first.ID), domain.TimelineUnassigned)

	a1 := h.agent(t, "a1")
	assert.Equal(t, 1, a1.CurrentTicketCount)
	assert.LessOrEqual(t, a1.CurrentTicketCount, a1.MaxCapacity)
	h.requireCountsConsistent(t)
}

func TestReopenWithUnavailableAgentRoutesAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 2, "Network")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a1"), ticket.ID, domain.EventResolve, "")
	require.NoError(t, err)
	_, err = h.agentSvc.SetAgentStatus(ctx, "a1", domain.AgentStatusOffline)
	require.NoError(t, err)
	h.addAgent(t, "a2", 1, 2, "Network")

	reopened, err := h.ticketSvc.UpdateTicketStatus(ctx, clientActor, ticket.ID, domain.EventReopen, "")
	require.NoError(t, err)
	require.NotNil(t, reopened.AssignedAgentID)
	assert.Equal(t, "a2", *reopened.AssignedAgentID)
	assert.Equal(t, domain.TicketStatusAssigned, reopened.Status)
	assert.Contains(t, h.timelineTypes(t, ticket.ID), domain.TimelineUnassigned)
	h.requireCountsConsistent(t)
}

func TestUnlistedTransitionsAreRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.ticketSvc.UpdateTicketStatus(ctx, managerActor, ticket.ID, domain.EventResolve, "")
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = h.ticketSvc.UpdateTicketStatus(ctx, managerActor, ticket.ID, domain.EventAssign, "")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.ticketSvc.UpdateTicketStatus(ctx, managerActor, ticket.ID, domain.TicketEvent("archive"), "")
	requireCode(t, err, apperrors.CodeValidation)

	assert.Equal(t, domain.TicketStatusOpen, h.ticket(t, ticket.ID).Status)
	assert.Equal(t, []domain.TimelineEventType{domain.TimelineCreated, domain.TimelineAssignmentPending},
		h.timelineTypes(t, ticket.ID))
}

func TestStatusAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 2, "Network")
	h.addAgent(t, "a2", 1, 2, "Billing")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.ticketSvc.UpdateTicketStatus(ctx, clientActor, ticket.ID, domain.EventStart, "")
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a2"), ticket.ID, domain.EventStart, "")
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.ticketSvc.GetTicket(ctx, otherClient, ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.ticketSvc.UpdateTicketStatus(ctx, adminActor, ticket.ID, domain.EventStart, "")
	require.NoError(t, err)
}

func TestUpdateUrgencyRecomputesFromCreation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.createTicket(t, clientActor, "Billing", 3).Ticket
	created := ticket.CreatedAt

	h.clock.Advance(time.Hour)
	updated, err := h.ticketSvc.UpdateUrgency(ctx, managerActor, ticket.ID, domain.UrgencyUrgent)
	require.NoError(t, err)

	assert.Equal(t, domain.UrgencyUrgent, updated.UrgencyLevel)
	require.NotNil(t, updated.SLADueDate)
	assert.Equal(t, created.Add(4*time.Hour), *updated.SLADueDate)
	assert.Equal(t, created.Add(3*time.Hour), *updated.SLAWarningAt)
	types := h.timelineTypes(t, ticket.ID)
	assert.Contains(t, types, domain.TimelineUrgencyChanged)
	assert.Contains(t, types, domain.TimelineSLARecomputed)

	_, err = h.ticketSvc.UpdateUrgency(ctx, clientActor, ticket.ID, domain.UrgencyMild)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.ticketSvc.UpdateUrgency(ctx, managerActor, ticket.ID, domain.UrgencyLevel(0))
	requireCode(t, err, apperrors.CodeValidation)
}

func TestUpdateUrgencyRoutesUnassignedTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "junior", 3, 2, "Network")

	ticket := h.createTicket(t, clientActor, "Network", 1).Ticket
	require.Nil(t, ticket.AssignedAgentID)

	updated, err := h.ticketSvc.UpdateUrgency(ctx, managerActor, ticket.ID, domain.UrgencyMild)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedAgentID)
	assert.Equal(t, "junior", *updated.AssignedAgentID)
}

func TestInternalNotesHiddenFromClients(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 2, "Network")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.ticketSvc.RecordComment(ctx, agentActor("a1"), ticket.ID, "suspect the router", true)
	require.NoError(t, err)
	entry, err := h.ticketSvc.RecordComment(ctx, clientActor, ticket.ID, "any update?", false)
	require.NoError(t, err)
	assert.Equal(t, domain.TimelineCommentAdded, entry.Type)

	_, err = h.ticketSvc.RecordComment(ctx, clientActor, ticket.ID, "sneaky", true)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.ticketSvc.RecordComment(ctx, clientActor, ticket.ID, "   ", false)
	requireCode(t, err, apperrors.CodeValidation)

	staffView, err := h.ticketSvc.Timeline(ctx, managerActor, ticket.ID)
	require.NoError(t, err)
	clientView, err := h.ticketSvc.Timeline(ctx, clientActor, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, clientView, len(staffView)-1)
	for i := 1; i < len(staffView); i++ {
		assert.Greater(t, staffView[i].Seq, staffView[i-1].Seq)
	}
	assert.Len(t, h.recorded.ofType(events.EventCommentAdded), 2)
}

func TestListTicketsScopesClients(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTicket(t, clientActor, "Network", 2)
	h.createTicket(t, clientActor, "Billing", 3)
	h.createTicket(t, otherClient, "Billing", 3)

	mine, err := h.ticketSvc.ListTickets(ctx, clientActor, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	billing := "Billing"
	all, err := h.ticketSvc.ListTickets(ctx, managerActor, TicketListFilter{Category: &billing})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
