package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID   *string
	AssigneeID    *string
	Category      *string
	Statuses      []domain.TicketStatus
	UrgencyLevels []domain.UrgencyLevel
	Breached      *bool
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists ticket if its Version matches the stored one and
	// bumps Version; otherwise it returns ErrConflict.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListActiveIDs returns ids of tickets in a non-terminal status.
	ListActiveIDs(ctx context.Context) ([]string, error)
	// ListUnassignedIDs returns open or escalated tickets without an
	// assignee, most urgent and oldest first.
	ListUnassignedIDs(ctx context.Context) ([]string, error)
	CountActiveByAgent(ctx context.Context, agentID string) (int, error)
}

type ticketRepository struct {
	db dbtx
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{db: pool}
}

const ticketColumns = `id, requester_id, title, description, category, priority, urgency_level, status,
               required_skills, assigned_agent_id, sla_due_date, sla_warning_at, response_due_at,
               sla_warning_sent, sla_breached, sla_rule_missing, escalated, escalation_count,
               created_at, updated_at, escalated_at, resolved_at, closed_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, requester_id, title, description, category, priority, urgency_level, status,
            required_skills, assigned_agent_id, sla_due_date, sla_warning_at, response_due_at,
            sla_warning_sent, sla_breached, sla_rule_missing, escalated, escalation_count,
            created_at, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.RequesterID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.UrgencyLevel,
		ticket.Status,
		ticket.RequiredSkills,
		ticket.AssignedAgentID,
		ticket.SLADueDate,
		ticket.SLAWarningAt,
		ticket.ResponseDueAt,
		ticket.SLAWarningSent,
		ticket.SLABreached,
		ticket.SLARuleMissing,
		ticket.Escalated,
		ticket.EscalationCount,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return err
	}
	ticket.Version = 1
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, priority=$4, urgency_level=$5, status=$6,
            required_skills=$7, assigned_agent_id=$8, sla_due_date=$9, sla_warning_at=$10, response_due_at=$11,
            sla_warning_sent=$12, sla_breached=$13, sla_rule_missing=$14, escalated=$15, escalation_count=$16,
            updated_at=$17, escalated_at=$18, resolved_at=$19, closed_at=$20, version=version+1
        WHERE id=$21 AND version=$22`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.UrgencyLevel,
		ticket.Status,
		ticket.RequiredSkills,
		ticket.AssignedAgentID,
		ticket.SLADueDate,
		ticket.SLAWarningAt,
		ticket.ResponseDueAt,
		ticket.SLAWarningSent,
		ticket.SLABreached,
		ticket.SLARuleMissing,
		ticket.Escalated,
		ticket.EscalationCount,
		ticket.UpdatedAt,
		ticket.EscalatedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, ticket.ID); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("LOWER(category)=LOWER($%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.UrgencyLevels) > 0 {
		placeholders := make([]string, len(filter.UrgencyLevels))
		for i, level := range filter.UrgencyLevels {
			args = append(args, level)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("urgency_level IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Breached != nil {
		args = append(args, *filter.Breached)
		clauses = append(clauses, fmt.Sprintf("sla_breached=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM tickets WHERE status NOT IN ('resolved','closed') ORDER BY sla_due_date ASC NULLS LAST`
	return r.queryIDs(ctx, query)
}

func (r *ticketRepository) ListUnassignedIDs(ctx context.Context) ([]string, error) {
	const query = `
        SELECT id FROM tickets
        WHERE status IN ('open','escalated') AND assigned_agent_id IS NULL
        ORDER BY urgency_level ASC, created_at ASC`
	return r.queryIDs(ctx, query)
}

func (r *ticketRepository) CountActiveByAgent(ctx context.Context, agentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE assigned_agent_id=$1 AND status NOT IN ('resolved','closed')`
	var count int
	if err := r.db.QueryRow(ctx, query, agentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.UrgencyLevel,
		&ticket.Status,
		&ticket.RequiredSkills,
		&ticket.AssignedAgentID,
		&ticket.SLADueDate,
		&ticket.SLAWarningAt,
		&ticket.ResponseDueAt,
		&ticket.SLAWarningSent,
		&ticket.SLABreached,
		&ticket.SLARuleMissing,
		&ticket.Escalated,
		&ticket.EscalationCount,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.EscalatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
