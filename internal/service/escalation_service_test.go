package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

func TestManualEscalationReroutesToSeniorAgent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 2, 3, "Network")
	h.addAgent(t, "s1", 1, 5, "Network")
	h.addManager(t, "m1")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket
	require.Equal(t, "a1", *ticket.AssignedAgentID)

	escalated, err := h.escalation.EscalateTicket(ctx, agentActor("a1"), ticket.ID)
	require.NoError(t, err)

	assert.True(t, escalated.Escalated)
	assert.Equal(t, 1, escalated.EscalationCount)
	assert.NotNil(t, escalated.EscalatedAt)
	require.NotNil(t, escalated.AssignedAgentID)
	assert.Equal(t, "s1", *escalated.AssignedAgentID)
	assert.Equal(t, 0, h.agent(t, "a1").CurrentTicketCount)
	assert.Equal(t, 1, h.agent(t, "s1").CurrentTicketCount)
	h.requireCountsConsistent(t)

	published := h.recorded.ofType(events.EventTicketEscalated)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.TicketEscalatedPayload)
	require.True(t, ok)
	assert.Equal(t, ReasonManual, payload.Reason)
	assert.Equal(t, "a1", payload.PreviousAgentID)
	assert.Equal(t, []string{"s1", "a1", "m1"}, payload.Recipients)

	types := h.timelineTypes(t, ticket.ID)
	assert.Contains(t, types, domain.TimelineEscalated)
}

func TestEscalatingTwiceOnlyAudits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	first, err := h.escalation.EscalateTicket(ctx, clientActor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, first.Status)
	assert.Equal(t, 1, first.EscalationCount)
	assert.Nil(t, first.AssignedAgentID)

	second, err := h.escalation.EscalateTicket(ctx, managerActor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.EscalationCount)
	assert.Equal(t, domain.TicketStatusEscalated, second.Status)

	types := h.timelineTypes(t, ticket.ID)
	assert.Contains(t, types, domain.TimelineAssignmentPending)
	assert.Equal(t, domain.TimelineEscalationRepeat, types[len(types)-1])
	assert.Len(t, h.recorded.ofType(events.EventTicketEscalated), 1)
}

func TestEscalationAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 3, "Network")
	h.addAgent(t, "a2", 1, 3, "Billing")
	ticket := h.createTicket(t, clientActor, "Network", 2).Ticket

	_, err := h.escalation.EscalateTicket(ctx, otherClient, ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.escalation.EscalateTicket(ctx, agentActor("a2"), ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.ticketSvc.UpdateTicketStatus(ctx, agentActor("a1"), ticket.ID, domain.EventResolve, "")
	require.NoError(t, err)
	_, err = h.escalation.EscalateTicket(ctx, managerActor, ticket.ID)
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestEscalationWithoutAgentsNotifiesManagersAndWaits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addManager(t, "m1")
	ticket := h.createTicket(t, clientActor, "Network", 1).Ticket

	escalated, err := h.escalation.EscalateTicket(ctx, clientActor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, escalated.Status)
	assert.Nil(t, escalated.AssignedAgentID)
	assert.Equal(t, 0, h.agent(t, "m1").CurrentTicketCount, "managers are notified, not assigned")
	assert.Contains(t, h.timelineTypes(t, ticket.ID), domain.TimelineAssignmentPending)

	published := h.recorded.ofType(events.EventTicketEscalated)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.TicketEscalatedPayload)
	require.True(t, ok)
	assert.Equal(t, []string{"m1"}, payload.Recipients)

	h.addAgent(t, "a1", 1, 2, "Network")
	report := h.assignment.RetryPending(ctx)
	assert.Equal(t, 1, report.Assigned)

	routed := h.ticket(t, ticket.ID)
	require.NotNil(t, routed.AssignedAgentID)
	assert.Equal(t, "a1", *routed.AssignedAgentID)
	assert.Equal(t, domain.TicketStatusAssigned, routed.Status)
	h.requireCountsConsistent(t)
}
