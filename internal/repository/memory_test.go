package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

func newAgent(id string, capacity int) *domain.Agent {
	now := time.Now().UTC()
	return &domain.Agent{
		ID:          id,
		Name:        id,
		Email:       id + "@example.com",
		Role:        domain.RoleAgent,
		Status:      domain.AgentStatusActive,
		MaxCapacity: capacity,
		AgentLevel:  1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryAgentAcquireRespectsCapacityUnderContention(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAgentRepository()
	require.NoError(t, repo.Create(ctx, newAgent("a1", 3)))

	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Acquire(ctx, "a1", AcquireAuto, time.Now()); err == nil {
				acquired.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrNotAcquired)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, acquired.Load())
	agent, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, agent.CurrentTicketCount)
	assert.Equal(t, domain.AgentStatusBusy, agent.Status)
}

func TestMemoryAgentAcquireModes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAgentRepository()
	require.NoError(t, repo.Create(ctx, newAgent("a1", 1)))

	_, err := repo.Acquire(ctx, "a1", AcquireAuto, time.Now())
	require.NoError(t, err)

	_, err = repo.Acquire(ctx, "a1", AcquireManual, time.Now())
	assert.ErrorIs(t, err, ErrNotAcquired)

	agent, err := repo.Acquire(ctx, "a1", AcquireOverride, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, agent.CurrentTicketCount)

	_, err = repo.Acquire(ctx, "missing", AcquireOverride, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAgentReleaseFlipsBusyToActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAgentRepository()
	require.NoError(t, repo.Create(ctx, newAgent("a1", 1)))

	agent, err := repo.Acquire(ctx, "a1", AcquireAuto, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusBusy, agent.Status)

	agent, err = repo.Release(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.CurrentTicketCount)
	assert.Equal(t, domain.AgentStatusActive, agent.Status)

	agent, err = repo.Release(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.CurrentTicketCount)
}

func TestMemoryAgentInactiveNeverAcquired(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAgentRepository()
	require.NoError(t, repo.Create(ctx, newAgent("a1", 5)))
	_, err := repo.SetStatus(ctx, "a1", domain.AgentStatusOffline)
	require.NoError(t, err)

	for _, mode := range []AcquireMode{AcquireAuto, AcquireManual, AcquireOverride} {
		_, err := repo.Acquire(ctx, "a1", mode, time.Now())
		assert.ErrorIs(t, err, ErrNotAcquired)
	}
}

func TestMemoryTicketUpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	ticket := &domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, UrgencyLevel: domain.UrgencyMild}
	require.NoError(t, repo.Create(ctx, ticket))

	first, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)

	first.Title = "first"
	require.NoError(t, repo.Update(ctx, first))
	assert.EqualValues(t, 2, first.Version)

	second.Title = "second"
	assert.ErrorIs(t, repo.Update(ctx, second), ErrConflict)
}

func TestMemoryTicketListUnassignedOrdersByUrgencyThenAge(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	base := time.Now().UTC()
	agent := "a1"
	seed := []*domain.Ticket{
		{ID: "mild-old", Status: domain.TicketStatusOpen, UrgencyLevel: domain.UrgencyMild, CreatedAt: base},
		{ID: "urgent-new", Status: domain.TicketStatusOpen, UrgencyLevel: domain.UrgencyUrgent, CreatedAt: base.Add(time.Minute)},
		{ID: "urgent-old", Status: domain.TicketStatusEscalated, UrgencyLevel: domain.UrgencyUrgent, CreatedAt: base},
		{ID: "assigned", Status: domain.TicketStatusAssigned, UrgencyLevel: domain.UrgencyUrgent, AssignedAgentID: &agent},
		{ID: "closed", Status: domain.TicketStatusClosed, UrgencyLevel: domain.UrgencyUrgent},
	}
	for _, ticket := range seed {
		require.NoError(t, repo.Create(ctx, ticket))
	}

	ids, err := repo.ListUnassignedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent-old", "urgent-new", "mild-old"}, ids)

	active, err := repo.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, active, "closed")
	assert.Len(t, active, 4)

	count, err := repo.CountActiveByAgent(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryTicketListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, &domain.Ticket{ID: "t1", RequesterID: "c1", Category: "Billing", Status: domain.TicketStatusOpen}))
	require.NoError(t, repo.Create(ctx, &domain.Ticket{ID: "t2", RequesterID: "c2", Category: "Network", Status: domain.TicketStatusOpen, SLABreached: true}))

	requester := "c1"
	tickets, err := repo.List(ctx, TicketFilter{RequesterID: &requester})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "t1", tickets[0].ID)

	category := "billing"
	tickets, err = repo.List(ctx, TicketFilter{Category: &category})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	breached := true
	tickets, err = repo.List(ctx, TicketFilter{Breached: &breached})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "t2", tickets[0].ID)
}

func TestMemoryTimelineAssignsSequence(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTimelineRepository()
	first := &domain.TimelineEvent{ID: "e1", TicketID: "t1", Type: domain.TimelineCreated}
	second := &domain.TimelineEvent{ID: "e2", TicketID: "t1", Type: domain.TimelineAssigned}
	other := &domain.TimelineEvent{ID: "e3", TicketID: "t2", Type: domain.TimelineCreated}
	require.NoError(t, repo.Append(ctx, first, second, other))

	assert.EqualValues(t, 1, first.Seq)
	assert.EqualValues(t, 2, second.Seq)
	assert.EqualValues(t, 1, other.Seq)

	events, err := repo.ListByTicket(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.TimelineAssigned, events[1].Type)
}

func TestMemoryCategoryCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCategoryRepository()
	require.NoError(t, repo.Create(ctx, &domain.Category{Name: "Billing"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.Category{Name: "billing"}), ErrConflict)

	ok, err := repo.Exists(ctx, "BILLING")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.Delete(ctx, "billing"))
	assert.ErrorIs(t, repo.Delete(ctx, "billing"), ErrNotFound)
}

func TestMemoryUnitOfWorkRevertsTicketWrites(t *testing.T) {
	ctx := context.Background()
	tickets := NewMemoryTicketRepository()
	timeline := NewMemoryTimelineRepository()
	uow := NewMemoryUnitOfWork(tickets, timeline)

	require.NoError(t, tickets.Create(ctx, &domain.Ticket{ID: "t-1", Status: domain.TicketStatusOpen}))

	boom := errors.New("boom")
	err := uow.WithinTx(ctx, func(tr TicketRepository, _ TimelineRepository) error {
		existing, err := tr.GetByID(ctx, "t-1")
		require.NoError(t, err)
		existing.Status = domain.TicketStatusAssigned
		require.NoError(t, tr.Update(ctx, existing))
		require.NoError(t, tr.Create(ctx, &domain.Ticket{ID: "t-2", Status: domain.TicketStatusOpen}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	kept, err := tickets.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, kept.Status)
	assert.Equal(t, int64(1), kept.Version)
	_, err = tickets.GetByID(ctx, "t-2")
	assert.ErrorIs(t, err, ErrNotFound)

	err = uow.WithinTx(ctx, func(tr TicketRepository, tl TimelineRepository) error {
		if err := tr.Create(ctx, &domain.Ticket{ID: "t-3", Status: domain.TicketStatusOpen}); err != nil {
			return err
		}
		return tl.Append(ctx, &domain.TimelineEvent{ID: "e-1", TicketID: "t-3", Type: domain.TimelineCreated})
	})
	require.NoError(t, err)
	entries, err := timeline.ListByTicket(ctx, "t-3")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
