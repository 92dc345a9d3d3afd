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

func TestSLARuleAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.policy.UpsertRule(ctx, SLARuleInput{UrgencyLevel: 1, ResolutionTimeHours: 0, ResponseTimeHours: 1, WarningTimeHours: 1, EscalationTimeHours: 1})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.policy.UpsertRule(ctx, SLARuleInput{UrgencyLevel: 4, ResolutionTimeHours: 1, ResponseTimeHours: 1, WarningTimeHours: 1, EscalationTimeHours: 1})
	requireCode(t, err, apperrors.CodeValidation)

	updated, err := h.policy.UpsertRule(ctx, SLARuleInput{UrgencyLevel: 1, ResolutionTimeHours: 6, ResponseTimeHours: 1, WarningTimeHours: 2, EscalationTimeHours: 3})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.ResolutionTimeHours)

	rules, err := h.policy.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, domain.UrgencyLevel(1), rules[0].UrgencyLevel)
	assert.Equal(t, 6, rules[0].ResolutionTimeHours)

	require.NoError(t, h.policy.DeleteRule(ctx, 3))
	_, err = h.policy.GetRule(ctx, 3)
	requireCode(t, err, apperrors.CodeNotFound)
	requireCode(t, h.policy.DeleteRule(ctx, 3), apperrors.CodeNotFound)
}

func TestCategoryAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.categories.CreateCategory(ctx, CategoryInput{Name: "network"})
	requireCode(t, err, apperrors.CodeConflict)

	_, err = h.categories.CreateCategory(ctx, CategoryInput{Name: "  "})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.categories.CreateCategory(ctx, CategoryInput{Name: "Hardware", Description: "Laptops and peripherals"})
	require.NoError(t, err)
	ok, err := h.categories.Exists(ctx, "Hardware")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, h.categories.DeleteCategory(ctx, "Hardware"))
	requireCode(t, h.categories.DeleteCategory(ctx, "Hardware"), apperrors.CodeNotFound)

	list, err := h.categories.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAgentDirectoryValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	base := AgentInput{Name: "Dana", Email: "dana@helpdesk.test", Role: "agent", MaxCapacity: 2, AgentLevel: 2}

	tests := []struct {
		name   string
		mutate func(*AgentInput)
	}{
		{"unknown category", func(in *AgentInput) { in.Categories = []string{"Plumbing"} }},
		{"busy requested", func(in *AgentInput) { in.Status = "busy" }},
		{"zero capacity", func(in *AgentInput) { in.MaxCapacity = 0 }},
		{"bad level", func(in *AgentInput) { in.AgentLevel = 4 }},
		{"client role", func(in *AgentInput) { in.Role = "client" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := h.agentSvc.CreateAgent(ctx, in)
			requireCode(t, err, apperrors.CodeValidation)
		})
	}

	_, err := h.agentSvc.CreateAgent(ctx, base)
	require.NoError(t, err)
	dup := base
	dup.Email = "DANA@helpdesk.test"
	_, err = h.agentSvc.CreateAgent(ctx, dup)
	requireCode(t, err, apperrors.CodeConflict)

	_, err = h.agentSvc.GetAgent(ctx, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.agentSvc.SetAgentStatus(ctx, "missing", domain.AgentStatusOffline)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAgentStatusFollowsLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 1, "Network")

	created := h.createTicket(t, clientActor, "Network", 2)
	require.NotNil(t, created.Ticket.AssignedAgentID)
	assert.Equal(t, domain.AgentStatusBusy, h.agent(t, "a1").Status)

	offline, err := h.agentSvc.SetAgentStatus(ctx, "a1", domain.AgentStatusOffline)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusOffline, offline.Status)

	back, err := h.agentSvc.SetAgentStatus(ctx, "a1", domain.AgentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusBusy, back.Status, "full agent lands on busy")

	_, err = h.agentSvc.SetAgentStatus(ctx, "a1", domain.AgentStatusBusy)
	requireCode(t, err, apperrors.CodeValidation)

	raised, err := h.agentSvc.UpdateAgent(ctx, "a1", AgentInput{
		Name: "a1", Email: "a1@helpdesk.test", Role: "agent",
		Categories: []string{"Network"}, MaxCapacity: 2, AgentLevel: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusActive, raised.Status)
	assert.Equal(t, 1, raised.CurrentTicketCount)
	h.requireCountsConsistent(t)

	assert.GreaterOrEqual(t, len(h.recorded.ofType(events.EventAgentChanged)), 4)
}

func TestListAgentsFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAgent(t, "a1", 1, 2, "Network")
	h.addAgent(t, "a2", 2, 2, "Billing")
	h.addManager(t, "m1")

	network := "Network"
	agents, err := h.agentSvc.ListAgents(ctx, AgentListFilter{Category: &network})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "a1", agents[0].ID)

	manager := domain.RoleManager
	agents, err = h.agentSvc.ListAgents(ctx, AgentListFilter{Role: &manager})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "m1", agents[0].ID)
}
