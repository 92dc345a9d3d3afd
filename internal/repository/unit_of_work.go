package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork commits a ticket write together with its timeline entries.
// When fn returns an error nothing it wrote is kept.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tickets TicketRepository, timeline TimelineRepository) error) error
}

type pgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork binds ticket and timeline repositories to one pgx
// transaction per call.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgUnitOfWork{pool: pool}
}

func (u *pgUnitOfWork) WithinTx(ctx context.Context, fn func(TicketRepository, TimelineRepository) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(&ticketRepository{db: tx}, &timelineRepository{db: tx})
	})
}

type memoryUnitOfWork struct {
	mu       sync.Mutex
	tickets  TicketRepository
	timeline TimelineRepository
}

// NewMemoryUnitOfWork runs fn directly against the given repositories.
// Ticket writes made through a memory ticket repository are undone when
// fn fails; the timeline is expected to fail before storing anything.
func NewMemoryUnitOfWork(tickets TicketRepository, timeline TimelineRepository) UnitOfWork {
	return &memoryUnitOfWork{tickets: tickets, timeline: timeline}
}

func (u *memoryUnitOfWork) WithinTx(ctx context.Context, fn func(TicketRepository, TimelineRepository) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	mem, ok := u.tickets.(*memoryTicketRepository)
	if !ok {
		return fn(u.tickets, u.timeline)
	}
	staged := &undoTicketRepository{memoryTicketRepository: mem, prior: make(map[string]*domain.Ticket)}
	if err := fn(staged, u.timeline); err != nil {
		staged.undo()
		return err
	}
	return nil
}

// undoTicketRepository remembers the stored value of every ticket it
// writes so the writes can be reverted.
type undoTicketRepository struct {
	*memoryTicketRepository
	prior map[string]*domain.Ticket
}

func (r *undoTicketRepository) remember(id string) {
	if _, seen := r.prior[id]; seen {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if stored, ok := r.tickets[id]; ok {
		r.prior[id] = stored.Clone()
	} else {
		r.prior[id] = nil
	}
}

func (r *undoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.remember(ticket.ID)
	return r.memoryTicketRepository.Create(ctx, ticket)
}

func (r *undoTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.remember(ticket.ID)
	return r.memoryTicketRepository.Update(ctx, ticket)
}

func (r *undoTicketRepository) undo() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, prior := range r.prior {
		if prior == nil {
			delete(r.tickets, id)
			continue
		}
		r.tickets[id] = prior
	}
}
