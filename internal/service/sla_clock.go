package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/observability"
	"github.com/Dev-Manje/helpdesk/internal/persistence"
	"github.com/Dev-Manje/helpdesk/internal/repository"
)

const sweepLeaseKey = "helpdesk:sla-sweep:leader"

// SweepLeaser grants sweep leadership when several replicas run.
type SweepLeaser interface {
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (*persistence.Lease, error)
}

// SweepReport summarises one sweep pass.
type SweepReport struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Scanned    int         `json:"scanned"`
	Warnings   int         `json:"warnings"`
	Breaches   int         `json:"breaches"`
	Failures   int         `json:"failures"`
	Retry      RetryReport `json:"retry"`
}

// SLAClockConfig tunes the sweeper.
type SLAClockConfig struct {
	Interval     time.Duration
	TicketBudget time.Duration
	Concurrency  int
	LeaseTTL     time.Duration
}

// SLAClock periodically evaluates non-terminal tickets for warning and
// breach conditions.
type SLAClock struct {
	lifecycle  *Lifecycle
	tickets    repository.TicketRepository
	escalation *EscalationService
	assignment *AssignmentService
	leaser     SweepLeaser
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        SLAClockConfig

	mu   sync.RWMutex
	last *SweepReport
}

// SLAClockDependencies bundles collaborators. Leaser is optional.
type SLAClockDependencies struct {
	Lifecycle  *Lifecycle
	TicketRepo repository.TicketRepository
	Escalation *EscalationService
	Assignment *AssignmentService
	Leaser     SweepLeaser
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Config     SLAClockConfig
}

// NewSLAClock constructs the sweeper.
func NewSLAClock(deps SLAClockDependencies) *SLAClock {
	c := &SLAClock{
		lifecycle:  deps.Lifecycle,
		tickets:    deps.TicketRepo,
		escalation: deps.Escalation,
		assignment: deps.Assignment,
		leaser:     deps.Leaser,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		cfg:        deps.Config,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.cfg.Interval <= 0 {
		c.cfg.Interval = time.Minute
	}
	if c.cfg.TicketBudget <= 0 {
		c.cfg.TicketBudget = 2 * time.Second
	}
	if c.cfg.Concurrency <= 0 {
		c.cfg.Concurrency = 8
	}
	if c.cfg.LeaseTTL <= 0 {
		c.cfg.LeaseTTL = c.cfg.Interval
	}
	return c
}

type sweepOutcome struct {
	warned   bool
	breached bool
}

// Sweep runs one pass. Tickets are evaluated independently with a bounded
// budget each; a failing ticket is logged and counted, never fatal. Pending
// assignments are retried afterwards.
func (c *SLAClock) Sweep(ctx context.Context) SweepReport {
	report := SweepReport{StartedAt: c.lifecycle.Now()}
	start := time.Now()

	ids, err := c.tickets.ListActiveIDs(ctx)
	if err != nil {
		c.logger.Error("sla sweep: list active tickets failed", zap.Error(err))
		report.Failures++
	}
	report.Scanned = len(ids)

	var warnings, breaches, failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, c.cfg.TicketBudget)
			defer cancel()
			outcome, err := c.evaluate(tctx, id)
			if err != nil {
				failures.Add(1)
				c.logger.Warn("sla sweep: ticket evaluation failed", zap.String("ticket_id", id), zap.Error(err))
				return nil
			}
			if outcome.warned {
				warnings.Add(1)
			}
			if outcome.breached {
				breaches.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Warnings = int(warnings.Load())
	report.Breaches = int(breaches.Load())
	report.Failures += int(failures.Load())
	if c.assignment != nil && ctx.Err() == nil {
		report.Retry = c.assignment.RetryPending(ctx)
	}
	report.FinishedAt = c.lifecycle.Now()

	c.metrics.Sweep(ctx, time.Since(start), report.Failures)
	c.mu.Lock()
	c.last = &report
	c.mu.Unlock()

	if report.Warnings > 0 || report.Breaches > 0 || report.Failures > 0 {
		c.logger.Info("sla sweep completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("warnings", report.Warnings),
			zap.Int("breaches", report.Breaches),
			zap.Int("failures", report.Failures),
			zap.Duration("duration", time.Since(start)))
	}
	return report
}

// evaluate checks one ticket under its lock. The flags are tested and set
// in the same critical section, so each fires at most once.
func (c *SLAClock) evaluate(ctx context.Context, ticketID string) (sweepOutcome, error) {
	var outcome sweepOutcome
	_, err := c.lifecycle.Mutate(ctx, "sla_sweep", domain.SystemActor, ticketID, func(tx *ticketTx) error {
		outcome = sweepOutcome{}
		t := tx.ticket
		if t.Status.Terminal() || t.SLADueDate == nil {
			return nil
		}
		now := tx.now
		due := *t.SLADueDate

		// A pass that first sees the ticket past due still owes the warning;
		// it is recorded ahead of the breach.
		if !t.SLAWarningSent && t.SLAWarningAt != nil && !now.Before(*t.SLAWarningAt) {
			c.escalation.warnLocked(tx)
			outcome.warned = true
		}

		if !t.SLABreached && !now.Before(due) {
			t.SLABreached = true
			tx.dirty = true
			assignee := ""
			if t.AssignedAgentID != nil {
				assignee = *t.AssignedAgentID
			}
			tx.record(domain.TimelineSLABreach, map[string]any{
				"urgency_level": int(t.UrgencyLevel),
				"sla_due_date":  due.Format(time.RFC3339),
			})
			tx.emit(events.EventSLABreach, assignee, events.SLAPayload{
				UrgencyLevel: t.UrgencyLevel,
				SLADueDate:   t.SLADueDate,
				AgentID:      assignee,
				Recipients:   c.escalation.recipients(tx.ctx, assignee),
			})
			c.metrics.SLASignal(tx.ctx, "breach", int(t.UrgencyLevel))
			outcome.breached = true
			return c.escalation.escalateLocked(tx, ReasonBreach)
		}
		return nil
	})
	return outcome, err
}

// LastReport returns the most recent sweep report, or nil before the
// first pass.
func (c *SLAClock) LastReport() *SweepReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	report := *c.last
	return &report
}

// Run sweeps immediately and then on every interval until ctx is done.
// With a leaser only the lease holder sweeps; an unreachable leaser does
// not stop sweeping since every signal is idempotent.
func (c *SLAClock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		if c.lead(ctx) {
			c.Sweep(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *SLAClock) lead(ctx context.Context) bool {
	if c.leaser == nil {
		return true
	}
	lease, err := c.leaser.AcquireLease(ctx, sweepLeaseKey, c.cfg.LeaseTTL)
	if err != nil {
		c.logger.Warn("sla sweep lease unavailable; sweeping locally", zap.Error(err))
		return true
	}
	return lease != nil
}
