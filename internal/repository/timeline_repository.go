package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// TimelineRepository is the append-only audit trail.
type TimelineRepository interface {
	// Append stores events in order and assigns each a per-ticket Seq.
	Append(ctx context.Context, events ...*domain.TimelineEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEvent, error)
}

type timelineRepository struct {
	db dbtx
}

// NewTimelineRepository instantiates repository.
func NewTimelineRepository(pool *pgxpool.Pool) TimelineRepository {
	return &timelineRepository{db: pool}
}

func (r *timelineRepository) Append(ctx context.Context, events ...*domain.TimelineEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `
        INSERT INTO ticket_timeline (id, ticket_id, seq, event_type, actor_id, actor_role, payload, created_at)
        SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6, $7
        FROM ticket_timeline WHERE ticket_id=$2
        RETURNING seq`
	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, query,
			event.ID,
			event.TicketID,
			event.Type,
			event.ActorID,
			event.ActorRole,
			payload,
			event.Timestamp,
		).Scan(&event.Seq); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *timelineRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEvent, error) {
	const query = `
        SELECT id, ticket_id, seq, event_type, actor_id, actor_role, payload, created_at
        FROM ticket_timeline WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var (
			event   domain.TimelineEvent
			payload []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.Seq,
			&event.Type,
			&event.ActorID,
			&event.ActorRole,
			&payload,
			&event.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
