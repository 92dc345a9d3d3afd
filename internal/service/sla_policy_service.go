package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
	"github.com/Dev-Manje/helpdesk/pkg/util/validate"
)

// SLAPolicyService is the per-urgency rule store. Rule changes apply to
// tickets created or re-leveled afterwards; existing deadlines stay.
type SLAPolicyService struct {
	rules     repository.SLARuleRepository
	validator *validate.Validator
	clock     Clock
}

// NewSLAPolicyService constructs the service.
func NewSLAPolicyService(repo repository.SLARuleRepository, clock Clock) *SLAPolicyService {
	if clock == nil {
		clock = SystemClock
	}
	return &SLAPolicyService{rules: repo, validator: validate.Default, clock: clock}
}

// SLARuleInput is the payload for UpsertRule.
type SLARuleInput struct {
	UrgencyLevel        int `json:"urgency_level" validate:"min=1,max=3"`
	ResponseTimeHours   int `json:"response_time_hours" validate:"gt=0"`
	ResolutionTimeHours int `json:"resolution_time_hours" validate:"gt=0"`
	WarningTimeHours    int `json:"warning_time_hours" validate:"gt=0"`
	EscalationTimeHours int `json:"escalation_time_hours" validate:"gt=0"`
}

func (s *SLAPolicyService) UpsertRule(ctx context.Context, input SLARuleInput) (*domain.SLARule, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	rule := &domain.SLARule{
		UrgencyLevel:        domain.UrgencyLevel(input.UrgencyLevel),
		ResponseTimeHours:   input.ResponseTimeHours,
		ResolutionTimeHours: input.ResolutionTimeHours,
		WarningTimeHours:    input.WarningTimeHours,
		EscalationTimeHours: input.EscalationTimeHours,
		UpdatedAt:           s.clock(),
	}
	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

func (s *SLAPolicyService) DeleteRule(ctx context.Context, level domain.UrgencyLevel) error {
	if err := s.rules.Delete(ctx, level); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("sla rule", map[string]any{"urgency_level": int(level)})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *SLAPolicyService) GetRule(ctx context.Context, level domain.UrgencyLevel) (*domain.SLARule, error) {
	rule, err := s.rules.Get(ctx, level)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("sla rule", map[string]any{"urgency_level": int(level)})
		}
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

func (s *SLAPolicyService) ListRules(ctx context.Context) ([]domain.SLARule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// slaDeadlines is the outcome of applying a rule to a ticket.
type slaDeadlines struct {
	rule     *domain.SLARule
	due      *time.Time
	warnAt   *time.Time
	response *time.Time
}

// deadlines computes SLA timestamps for level anchored at createdAt. A nil
// rule in the result means no rule is configured for the level.
func (s *SLAPolicyService) deadlines(ctx context.Context, level domain.UrgencyLevel, createdAt, now time.Time) (slaDeadlines, error) {
	rule, err := s.rules.Get(ctx, level)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return slaDeadlines{}, nil
		}
		return slaDeadlines{}, apperrors.MapError(err)
	}
	due := createdAt.Add(rule.ResolutionWindow())
	warnAt := due.Add(-rule.WarningLead())
	if warnAt.Before(now) {
		warnAt = now
	}
	response := createdAt.Add(rule.ResponseWindow())
	return slaDeadlines{rule: rule, due: &due, warnAt: &warnAt, response: &response}, nil
}

// applySLA writes deadlines for the ticket's current urgency level and
// records the outcome. Breach and warning flags are never cleared.
func (s *SLAPolicyService) applySLA(ctx context.Context, tx *ticketTx, reason string) (bool, error) {
	t := tx.ticket
	d, err := s.deadlines(ctx, t.UrgencyLevel, t.CreatedAt, tx.now)
	if err != nil {
		return false, err
	}
	tx.dirty = true
	if d.rule == nil {
		t.SLADueDate = nil
		t.SLAWarningAt = nil
		t.ResponseDueAt = nil
		t.SLARuleMissing = true
		tx.record(domain.TimelineSLARuleMissing, map[string]any{
			"urgency_level": int(t.UrgencyLevel),
			"reason":        reason,
		})
		return false, nil
	}
	t.SLADueDate = d.due
	t.SLAWarningAt = d.warnAt
	t.ResponseDueAt = d.response
	t.SLARuleMissing = false
	if reason != "created" {
		tx.record(domain.TimelineSLARecomputed, map[string]any{
			"urgency_level": int(t.UrgencyLevel),
			"sla_due_date":  d.due.Format(time.RFC3339),
			"reason":        reason,
		})
	}
	return true, nil
}
