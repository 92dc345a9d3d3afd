package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/events"
)

// EventsHandler streams domain events as server-sent events so dashboards
// can follow SLA signals without polling.
type EventsHandler struct {
	base       context.Context
	dispatcher events.Dispatcher
	logger     *zap.Logger
	keepAlive  time.Duration
}

// NewEventsHandler constructs handler. Streams end when base is cancelled.
func NewEventsHandler(base context.Context, dispatcher events.Dispatcher, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{base: base, dispatcher: dispatcher, logger: logger, keepAlive: 25 * time.Second}
}

// Stream GET /events. The optional types query narrows the stream, e.g.
// ?types=sla_breach,escalated.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	wanted := map[events.EventType]struct{}{}
	for _, t := range parseList(c.Query("types")) {
		wanted[events.EventType(t)] = struct{}{}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	ctx, cancel := context.WithCancel(h.base)
	stream := h.dispatcher.Stream(ctx, 64)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				if _, match := wanted[event.Type]; len(wanted) > 0 && !match {
					continue
				}
				data, err := json.Marshal(event)
				if err != nil {
					h.logger.Warn("event stream encode failed", zap.String("event_type", string(event.Type)), zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
