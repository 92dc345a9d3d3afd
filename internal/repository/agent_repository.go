package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// AcquireMode controls the guard applied when taking an agent slot.
type AcquireMode int

const (
	// AcquireAuto requires an active agent below capacity.
	AcquireAuto AcquireMode = iota
	// AcquireManual requires an available agent below capacity.
	AcquireManual
	// AcquireOverride requires an available agent and ignores capacity.
	AcquireOverride
)

// AgentFilter captures listing parameters.
type AgentFilter struct {
	Roles    []domain.Role
	Statuses []domain.AgentStatus
	Category *string
}

// AgentRepository persists agents and owns the atomic capacity counter.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	// Update writes profile fields. The load counter is never written here;
	// the active/busy flag is recomputed against the new capacity.
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error)
	// Acquire increments the agent's load if mode's guard holds, stamps
	// last_assigned_at and flips the agent to busy at capacity. It returns
	// ErrNotAcquired when the guard fails and ErrNotFound for unknown ids.
	Acquire(ctx context.Context, id string, mode AcquireMode, at time.Time) (*domain.Agent, error)
	// Release decrements the load, never below zero, and flips a busy
	// agent back to active once it has room.
	Release(ctx context.Context, id string) (*domain.Agent, error)
	SetStatus(ctx context.Context, id string, status domain.AgentStatus) (*domain.Agent, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, name, email, role, status, categories, skills, max_capacity,
               current_ticket_count, agent_level, last_assigned_at, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (id, name, email, role, status, categories, skills, max_capacity,
            current_ticket_count, agent_level, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Email,
		agent.Role,
		agent.Status,
		agent.Categories,
		agent.Skills,
		agent.MaxCapacity,
		agent.AgentLevel,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents SET name=$1, email=$2, role=$3, categories=$4, skills=$5, max_capacity=$6,
            agent_level=$7, updated_at=$8,
            status = CASE
                WHEN status='active' AND current_ticket_count >= $6 THEN 'busy'
                WHEN status='busy' AND current_ticket_count < $6 THEN 'active'
                ELSE status END
        WHERE id=$9
        RETURNING ` + agentColumns
	updated, err := scanAgent(r.pool.QueryRow(ctx, query,
		agent.Name,
		agent.Email,
		agent.Role,
		agent.Categories,
		agent.Skills,
		agent.MaxCapacity,
		agent.AgentLevel,
		agent.UpdatedAt,
		agent.ID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return mapNoRows(err)
	}
	*agent = *updated
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id=$1`
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return agent, nil
}

func (r *agentRepository) List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Roles) > 0 {
		placeholders := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			args = append(args, role)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("role IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(categories) c WHERE LOWER(c)=LOWER($%d))", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM agents WHERE %s ORDER BY id ASC`, agentColumns, strings.Join(clauses, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func (r *agentRepository) Acquire(ctx context.Context, id string, mode AcquireMode, at time.Time) (*domain.Agent, error) {
	var guard string
	switch mode {
	case AcquireAuto:
		guard = "status='active' AND role='agent' AND current_ticket_count < max_capacity"
	case AcquireManual:
		guard = "status IN ('active','busy') AND current_ticket_count < max_capacity"
	default:
		guard = "status IN ('active','busy')"
	}
	query := `
        UPDATE agents SET current_ticket_count = current_ticket_count + 1,
            last_assigned_at=$2, updated_at=$2,
            status = CASE WHEN status='active' AND current_ticket_count + 1 >= max_capacity THEN 'busy' ELSE status END
        WHERE id=$1 AND ` + guard + `
        RETURNING ` + agentColumns
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id, at))
	if err == nil {
		return agent, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotAcquired
}

func (r *agentRepository) Release(ctx context.Context, id string) (*domain.Agent, error) {
	const query = `
        UPDATE agents SET current_ticket_count = GREATEST(current_ticket_count - 1, 0), updated_at=NOW(),
            status = CASE WHEN status='busy' AND GREATEST(current_ticket_count - 1, 0) < max_capacity THEN 'active' ELSE status END
        WHERE id=$1
        RETURNING ` + agentColumns
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return agent, nil
}

func (r *agentRepository) SetStatus(ctx context.Context, id string, status domain.AgentStatus) (*domain.Agent, error) {
	// An explicit active request lands on busy while the agent is full.
	const query = `
        UPDATE agents SET updated_at=NOW(),
            status = CASE WHEN $2='active' AND current_ticket_count >= max_capacity THEN 'busy' ELSE $2 END
        WHERE id=$1
        RETURNING ` + agentColumns
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id, string(status)))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return agent, nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.Role,
		&agent.Status,
		&agent.Categories,
		&agent.Skills,
		&agent.MaxCapacity,
		&agent.CurrentTicketCount,
		&agent.AgentLevel,
		&agent.LastAssignedAt,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
