package domain

import (
	"slices"
	"strings"
	"time"
)

// AgentStatus is the availability state of an agent.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusBusy     AgentStatus = "busy"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusOffline  AgentStatus = "offline"
)

// Valid reports whether s is a known status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusActive, AgentStatusBusy, AgentStatusInactive, AgentStatusOffline:
		return true
	}
	return false
}

// Available is true for agents that may hold tickets.
func (s AgentStatus) Available() bool {
	return s == AgentStatusActive || s == AgentStatusBusy
}

// Agent models a support agent, manager or admin in the directory.
type Agent struct {
	ID                 string
	Name               string
	Email              string
	Role               Role
	Status             AgentStatus
	Categories         []string
	Skills             []string
	MaxCapacity        int
	CurrentTicketCount int
	AgentLevel         int
	LastAssignedAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HandlesCategory reports an exact, case-insensitive category match.
func (a *Agent) HandlesCategory(category string) bool {
	return slices.ContainsFunc(a.Categories, func(c string) bool {
		return strings.EqualFold(c, category)
	})
}

// Unrestricted agents have no category list and take general work.
func (a *Agent) Unrestricted() bool {
	return len(a.Categories) == 0
}

// HasCapacity reports whether one more ticket fits without override.
func (a *Agent) HasCapacity() bool {
	return a.CurrentTicketCount < a.MaxCapacity
}

// AuthorizedFor reports whether the agent's tier covers the urgency level.
// Tier 1 handles everything, tier 3 only mild tickets.
func (a *Agent) AuthorizedFor(level UrgencyLevel) bool {
	return a.AgentLevel >= 1 && a.AgentLevel <= int(level)
}

// Clone returns a deep copy.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Categories = slices.Clone(a.Categories)
	cp.Skills = slices.Clone(a.Skills)
	if a.LastAssignedAt != nil {
		t := *a.LastAssignedAt
		cp.LastAssignedAt = &t
	}
	return &cp
}
