package domain

import "time"

// SLARule holds the timing policy for one urgency level. All hour values
// are positive.
type SLARule struct {
	UrgencyLevel        UrgencyLevel
	ResponseTimeHours   int
	ResolutionTimeHours int
	WarningTimeHours    int
	EscalationTimeHours int
	UpdatedAt           time.Time
}

// ResolutionWindow is the time allowed to resolve.
func (r SLARule) ResolutionWindow() time.Duration {
	return time.Duration(r.ResolutionTimeHours) * time.Hour
}

// ResponseWindow is the time allowed until first response.
func (r SLARule) ResponseWindow() time.Duration {
	return time.Duration(r.ResponseTimeHours) * time.Hour
}

// WarningLead is how long before the deadline a warning fires.
func (r SLARule) WarningLead() time.Duration {
	return time.Duration(r.WarningTimeHours) * time.Hour
}
