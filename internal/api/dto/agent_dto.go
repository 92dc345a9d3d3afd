package dto

import (
	"time"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// AgentRequest creates or updates an agent profile.
type AgentRequest struct {
	ID          string   `json:"id" validate:"omitempty,max=64"`
	Name        string   `json:"name" validate:"required,max=200"`
	Email       string   `json:"email" validate:"required,email"`
	Role        string   `json:"role" validate:"required,oneof=agent manager admin"`
	Status      string   `json:"status" validate:"omitempty,oneof=active inactive offline"`
	Categories  []string `json:"categories" validate:"omitempty,dive,max=64"`
	Skills      []string `json:"skills" validate:"omitempty,dive,max=64"`
	MaxCapacity int      `json:"max_capacity" validate:"required,min=1,max=1000"`
	AgentLevel  int      `json:"agent_level" validate:"required,min=1,max=3"`
}

// AgentStatusRequest changes availability. Busy is derived from load and
// cannot be requested.
type AgentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive offline"`
}

// AgentResponse is the directory view of an agent.
type AgentResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Role               domain.Role        `json:"role"`
	Status             domain.AgentStatus `json:"status"`
	Categories         []string           `json:"categories"`
	Skills             []string           `json:"skills"`
	MaxCapacity        int                `json:"max_capacity"`
	CurrentTicketCount int                `json:"current_ticket_count"`
	AgentLevel         int                `json:"agent_level"`
	LastAssignedAt     *time.Time         `json:"last_assigned_at"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// CategoryRequest payload.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=500"`
}

// CategoryResponse payload.
type CategoryResponse struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAgentResponse maps a domain agent.
func NewAgentResponse(a *domain.Agent) AgentResponse {
	resp := AgentResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Email:              a.Email,
		Role:               a.Role,
		Status:             a.Status,
		Categories:         a.Categories,
		Skills:             a.Skills,
		MaxCapacity:        a.MaxCapacity,
		CurrentTicketCount: a.CurrentTicketCount,
		AgentLevel:         a.AgentLevel,
		LastAssignedAt:     a.LastAssignedAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.Skills == nil {
		resp.Skills = []string{}
	}
	return resp
}
