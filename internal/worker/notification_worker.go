package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/service"
)

// NotificationWorker delivers events off the request path. Events are
// queued by a dispatcher subscription and drained by a fixed pool.
type NotificationWorker struct {
	svc     *service.NotificationService
	logger  *zap.Logger
	queue   chan events.Event
	workers int
	wg      sync.WaitGroup
}

// NewNotificationWorker sizes the pool. Non-positive values fall back to
// small defaults.
func NewNotificationWorker(svc *service.NotificationService, logger *zap.Logger, workers, queueSize int) *NotificationWorker {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 128
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		svc:     svc,
		logger:  logger,
		queue:   make(chan events.Event, queueSize),
		workers: workers,
	}
}

// Subscribe attaches the worker to every event on dispatcher. Events that
// do not fit in the queue are dropped and logged.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		if !w.svc.Notifiable(event.Type) {
			return nil
		}
		select {
		case w.queue <- event:
		default:
			w.logger.Warn("notification queue full; dropping event",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID))
		}
		return nil
	})
}

// Start launches the pool. Workers drain the queue until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-w.queue:
					if err := w.svc.Deliver(ctx, event); err != nil {
						w.logger.Warn("notification delivery failed",
							zap.String("event_type", string(event.Type)),
							zap.String("ticket_id", event.TicketID),
							zap.Error(err))
					}
				}
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

// Pending reports queued, undelivered events.
func (w *NotificationWorker) Pending() int {
	return len(w.queue)
}
