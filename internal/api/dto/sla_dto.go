package dto

import (
	"time"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// SLARuleRequest replaces the rule for the urgency level in the path.
type SLARuleRequest struct {
	ResponseTimeHours   int `json:"response_time_hours" validate:"required,gt=0"`
	ResolutionTimeHours int `json:"resolution_time_hours" validate:"required,gt=0"`
	WarningTimeHours    int `json:"warning_time_hours" validate:"required,gt=0"`
	EscalationTimeHours int `json:"escalation_time_hours" validate:"required,gt=0"`
}

// SLARuleResponse payload.
type SLARuleResponse struct {
	UrgencyLevel        domain.UrgencyLevel `json:"urgency_level"`
	Label               string              `json:"label"`
	ResponseTimeHours   int                 `json:"response_time_hours"`
	ResolutionTimeHours int                 `json:"resolution_time_hours"`
	WarningTimeHours    int                 `json:"warning_time_hours"`
	EscalationTimeHours int                 `json:"escalation_time_hours"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewSLARuleResponse maps a rule.
func NewSLARuleResponse(r *domain.SLARule) SLARuleResponse {
	return SLARuleResponse{
		UrgencyLevel:        r.UrgencyLevel,
		Label:               r.UrgencyLevel.String(),
		ResponseTimeHours:   r.ResponseTimeHours,
		ResolutionTimeHours: r.ResolutionTimeHours,
		WarningTimeHours:    r.WarningTimeHours,
		EscalationTimeHours: r.EscalationTimeHours,
		UpdatedAt:           r.UpdatedAt,
	}
}
