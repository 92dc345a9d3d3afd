package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// SLARuleRepository stores one rule per urgency level.
type SLARuleRepository interface {
	Upsert(ctx context.Context, rule *domain.SLARule) error
	Get(ctx context.Context, level domain.UrgencyLevel) (*domain.SLARule, error)
	List(ctx context.Context) ([]domain.SLARule, error)
	Delete(ctx context.Context, level domain.UrgencyLevel) error
}

type slaRuleRepository struct {
	pool *pgxpool.Pool
}

// NewSLARuleRepository instantiates repository.
func NewSLARuleRepository(pool *pgxpool.Pool) SLARuleRepository {
	return &slaRuleRepository{pool: pool}
}

func (r *slaRuleRepository) Upsert(ctx context.Context, rule *domain.SLARule) error {
	const query = `
        INSERT INTO sla_rules (urgency_level, response_time_hours, resolution_time_hours,
            warning_time_hours, escalation_time_hours, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (urgency_level) DO UPDATE SET
            response_time_hours=EXCLUDED.response_time_hours,
            resolution_time_hours=EXCLUDED.resolution_time_hours,
            warning_time_hours=EXCLUDED.warning_time_hours,
            escalation_time_hours=EXCLUDED.escalation_time_hours,
            updated_at=EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		rule.UrgencyLevel,
		rule.ResponseTimeHours,
		rule.ResolutionTimeHours,
		rule.WarningTimeHours,
		rule.EscalationTimeHours,
		rule.UpdatedAt,
	)
	return err
}

func (r *slaRuleRepository) Get(ctx context.Context, level domain.UrgencyLevel) (*domain.SLARule, error) {
	const query = `
        SELECT urgency_level, response_time_hours, resolution_time_hours, warning_time_hours,
               escalation_time_hours, updated_at
        FROM sla_rules WHERE urgency_level=$1`
	rule, err := scanSLARule(r.pool.QueryRow(ctx, query, level))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return rule, nil
}

func (r *slaRuleRepository) List(ctx context.Context) ([]domain.SLARule, error) {
	const query = `
        SELECT urgency_level, response_time_hours, resolution_time_hours, warning_time_hours,
               escalation_time_hours, updated_at
        FROM sla_rules ORDER BY urgency_level ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.SLARule
	for rows.Next() {
		rule, err := scanSLARule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *slaRuleRepository) Delete(ctx context.Context, level domain.UrgencyLevel) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sla_rules WHERE urgency_level=$1`, level)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSLARule(row pgx.Row) (*domain.SLARule, error) {
	var rule domain.SLARule
	if err := row.Scan(
		&rule.UrgencyLevel,
		&rule.ResponseTimeHours,
		&rule.ResolutionTimeHours,
		&rule.WarningTimeHours,
		&rule.EscalationTimeHours,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}
