package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/observability"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	"github.com/Dev-Manje/helpdesk/pkg/util/keymutex"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// LifecycleDependencies bundles what the lifecycle needs.
type LifecycleDependencies struct {
	TicketRepo   repository.TicketRepository
	TimelineRepo repository.TimelineRepository
	// Store commits a ticket with its timeline entries. Defaults to a
	// memory unit of work over TicketRepo and TimelineRepo.
	Store      repository.UnitOfWork
	Dispatcher events.Dispatcher
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Clock        Clock
	LockWait     time.Duration
}

// Lifecycle is the single writer of ticket state. Every mutation runs
// under a per-ticket lock and is persisted together with its timeline
// entries, with an optimistic version check. Domain events are published
// after release.
type Lifecycle struct {
	tickets    repository.TicketRepository
	timeline   repository.TimelineRepository
	store      repository.UnitOfWork
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      Clock
	lockWait   time.Duration
	locks      *keymutex.KeyMutex
}

// NewLifecycle constructs the lifecycle.
func NewLifecycle(deps LifecycleDependencies) *Lifecycle {
	l := &Lifecycle{
		tickets:    deps.TicketRepo,
		timeline:   deps.TimelineRepo,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		lockWait:   deps.LockWait,
		locks:      keymutex.New(),
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.clock == nil {
		l.clock = SystemClock
	}
	if l.store == nil {
		l.store = repository.NewMemoryUnitOfWork(l.tickets, l.timeline)
	}
	if l.lockWait <= 0 {
		l.lockWait = 3 * time.Second
	}
	return l
}

// Now returns the lifecycle clock reading.
func (l *Lifecycle) Now() time.Time {
	return l.clock()
}

// ticketTx is the scope of one locked mutation.
type ticketTx struct {
	ctx    context.Context
	lc     *Lifecycle
	ticket *domain.Ticket
	actor  domain.Actor
	now    time.Time
	isNew  bool
	dirty  bool

	timeline  []*domain.TimelineEvent
	events    []events.Event
	rollbacks []func(context.Context)
	commits   []func(context.Context)
}

// record appends an audit entry for the current ticket.
func (tx *ticketTx) record(kind domain.TimelineEventType, payload map[string]any) *domain.TimelineEvent {
	entry := &domain.TimelineEvent{
		ID:        uuid.NewString(),
		TicketID:  tx.ticket.ID,
		Type:      kind,
		ActorID:   tx.actor.ID,
		ActorRole: tx.actor.Role,
		Timestamp: tx.now,
		Payload:   payload,
	}
	tx.timeline = append(tx.timeline, entry)
	return entry
}

// emit queues a domain event for publication after the lock is released.
func (tx *ticketTx) emit(kind events.EventType, agentID string, payload any) {
	tx.events = append(tx.events, events.Event{
		ID:        uuid.NewString(),
		Type:      kind,
		TicketID:  tx.ticket.ID,
		AgentID:   agentID,
		Actor:     tx.actor,
		Timestamp: tx.now,
		Payload:   payload,
	})
}

// onRollback registers compensation for side effects taken outside the
// ticket row, such as an agent slot acquired before the ticket is saved.
func (tx *ticketTx) onRollback(fn func(context.Context)) {
	tx.rollbacks = append(tx.rollbacks, fn)
}

// onCommit registers work that must only happen once the ticket is saved.
// It runs while the ticket lock is still held.
func (tx *ticketTx) onCommit(fn func(context.Context)) {
	tx.commits = append(tx.commits, fn)
}

// transition applies event through the lifecycle table.
func (tx *ticketTx) transition(event domain.TicketEvent, comment string) error {
	next, ok := domain.NextStatus(tx.ticket.Status, event)
	if !ok {
		return apperrors.NewInvalidTransition(string(tx.ticket.Status), string(event))
	}
	tx.setStatus(next, event, comment)
	return nil
}

// setStatus writes status and its timestamps. Callers have validated the
// event against the lifecycle table.
func (tx *ticketTx) setStatus(next domain.TicketStatus, event domain.TicketEvent, comment string) {
	from := tx.ticket.Status
	tx.ticket.Status = next
	switch next {
	case domain.TicketStatusResolved:
		tx.ticket.ResolvedAt = timePtr(tx.now)
	case domain.TicketStatusClosed:
		tx.ticket.ClosedAt = timePtr(tx.now)
	}
	if event == domain.EventReopen {
		tx.ticket.ResolvedAt = nil
	}
	tx.dirty = true

	payload := map[string]any{"from": string(from), "to": string(next), "event": string(event)}
	if comment != "" {
		payload["comment"] = comment
	}
	tx.record(domain.TimelineStatusChanged, payload)
	tx.emit(events.EventTicketStatusChanged, "", events.TicketStatusChangedPayload{
		OldStatus: from,
		NewStatus: next,
		Event:     event,
		Comment:   comment,
	})
	tx.lc.metrics.Transition(tx.ctx, string(from), string(next))
}

// Mutate loads ticketID under its lock and applies fn. Nothing is written
// when fn fails. The returned ticket is a snapshot after the commit.
func (l *Lifecycle) Mutate(ctx context.Context, op string, actor domain.Actor, ticketID string, fn func(*ticketTx) error) (*domain.Ticket, error) {
	tx := &ticketTx{ctx: ctx, lc: l, actor: actor, ticket: &domain.Ticket{ID: ticketID}}
	return l.run(ctx, op, tx, fn)
}

// Create persists a new ticket after fn has shaped it, under the same
// locking rules as Mutate.
func (l *Lifecycle) Create(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, fn func(*ticketTx) error) (*domain.Ticket, error) {
	tx := &ticketTx{ctx: ctx, lc: l, actor: actor, ticket: ticket, isNew: true, dirty: true}
	return l.run(ctx, "create", tx, fn)
}

func (l *Lifecycle) run(ctx context.Context, op string, tx *ticketTx, fn func(*ticketTx) error) (*domain.Ticket, error) {
	lockCtx, cancel := context.WithTimeout(ctx, l.lockWait)
	unlock, err := l.locks.Lock(lockCtx, tx.ticket.ID)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		l.metrics.LockTimeout(ctx, op)
		l.logger.Warn("ticket lock wait exceeded",
			zap.String("ticket_id", tx.ticket.ID), zap.String("operation", op))
		return nil, apperrors.NewConcurrentModification("ticket", map[string]any{
			"ticket_id": tx.ticket.ID,
			"operation": op,
		})
	}

	snapshot, err := l.apply(ctx, op, tx, fn)
	unlock()
	if err != nil {
		return nil, err
	}

	l.publish(ctx, tx.events)
	return snapshot, nil
}

func (l *Lifecycle) apply(ctx context.Context, op string, tx *ticketTx, fn func(*ticketTx) error) (*domain.Ticket, error) {
	tx.now = l.clock()
	if tx.isNew {
		tx.ticket.CreatedAt = tx.now
	} else {
		ticket, err := l.tickets.GetByID(ctx, tx.ticket.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": tx.ticket.ID})
			}
			return nil, apperrors.MapError(err)
		}
		tx.ticket = ticket
	}

	if err := fn(tx); err != nil {
		l.rollback(tx)
		return nil, err
	}

	if err := l.persist(ctx, tx); err != nil {
		l.rollback(tx)
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConcurrentModification("ticket", map[string]any{
				"ticket_id": tx.ticket.ID,
				"operation": op,
			})
		}
		l.logger.Error("ticket write failed",
			zap.String("ticket_id", tx.ticket.ID),
			zap.String("operation", op),
			zap.Int("timeline_entries", len(tx.timeline)),
			zap.Error(err))
		return nil, apperrors.MapError(err)
	}

	for _, commit := range tx.commits {
		commit(ctx)
	}
	return tx.ticket.Clone(), nil
}

// persist writes the ticket and its timeline entries as one unit. The
// in-memory ticket keeps its old version when the unit fails.
func (l *Lifecycle) persist(ctx context.Context, tx *ticketTx) error {
	if !tx.dirty && len(tx.timeline) == 0 {
		return nil
	}
	version := tx.ticket.Version
	err := l.store.WithinTx(ctx, func(tickets repository.TicketRepository, timeline repository.TimelineRepository) error {
		if tx.dirty {
			tx.ticket.UpdatedAt = tx.now
			var err error
			if tx.isNew {
				err = tickets.Create(ctx, tx.ticket)
			} else {
				err = tickets.Update(ctx, tx.ticket)
			}
			if err != nil {
				return err
			}
		}
		if len(tx.timeline) > 0 {
			return timeline.Append(ctx, tx.timeline...)
		}
		return nil
	})
	if err != nil {
		tx.ticket.Version = version
	}
	return err
}

func (l *Lifecycle) rollback(tx *ticketTx) {
	// Compensation must run even when the request context is gone.
	ctx := context.WithoutCancel(tx.ctx)
	for i := len(tx.rollbacks) - 1; i >= 0; i-- {
		tx.rollbacks[i](ctx)
	}
}

func (l *Lifecycle) publish(ctx context.Context, evts []events.Event) {
	if l.dispatcher == nil {
		return
	}
	for _, event := range evts {
		if err := l.dispatcher.Publish(ctx, event); err != nil {
			l.logger.Warn("event publish failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// Get returns a snapshot without taking the lock.
func (l *Lifecycle) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := l.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
