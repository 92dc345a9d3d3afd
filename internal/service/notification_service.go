package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/config"
	"github.com/Dev-Manje/helpdesk/internal/events"
)

// EventPublisher hands serialized events to an external consumer.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}

// NotificationService turns domain events into deliveries. Email and
// webhook transports are owned by collaborators and only logged here; the
// optional stream publisher is the hand-off point.
type NotificationService struct {
	logger    *zap.Logger
	cfg       config.NotificationConfig
	publisher EventPublisher
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig, publisher EventPublisher) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger, cfg: cfg, publisher: publisher}
}

// Notifiable reports whether the event type leaves the engine.
func (n *NotificationService) Notifiable(eventType events.EventType) bool {
	switch eventType {
	case events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketAssigned,
		events.EventTicketEscalated, events.EventSLAWarning, events.EventSLABreach,
		events.EventSLARuleMissing, events.EventCommentAdded:
		return true
	}
	return false
}

// Deliver sends one event to every configured channel.
func (n *NotificationService) Deliver(ctx context.Context, event events.Event) error {
	if !n.Notifiable(event.Type) {
		return nil
	}
	recipients := Recipients(event)
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Strings("recipients", recipients))

	switch event.Type {
	case events.EventTicketCreated, events.EventTicketEscalated, events.EventSLABreach, events.EventCommentAdded:
		n.sendEmailNotificationStub(event, recipients)
	}
	n.sendWebhookNotificationStub(event)

	if n.publisher == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, string(event.Type), body)
}

// Recipients extracts the delivery list carried by an event payload.
func Recipients(event events.Event) []string {
	switch p := event.Payload.(type) {
	case events.TicketEscalatedPayload:
		return p.Recipients
	case events.SLAPayload:
		return p.Recipients
	case events.TicketAssignedPayload:
		return []string{p.AgentID}
	}
	if event.AgentID != "" {
		return []string{event.AgentID}
	}
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(event events.Event, recipients []string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Strings("to", recipients),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
