package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/events"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
	"github.com/Dev-Manje/helpdesk/pkg/util/validate"
)

// AgentService is the agent directory. Load counters are owned by the
// repository's Acquire/Release and never written here.
type AgentService struct {
	agents     repository.AgentRepository
	categories *CategoryService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	validator  *validate.Validator
	clock      Clock
}

// AgentDependencies bundles collaborators.
type AgentDependencies struct {
	AgentRepo  repository.AgentRepository
	Categories *CategoryService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// NewAgentService constructs the service.
func NewAgentService(deps AgentDependencies) *AgentService {
	s := &AgentService{
		agents:     deps.AgentRepo,
		categories: deps.Categories,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		validator:  validate.Default,
		clock:      deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	return s
}

// AgentInput describes agent creation and profile updates.
type AgentInput struct {
	ID          string   `json:"id" validate:"omitempty,max=64"`
	Name        string   `json:"name" validate:"required,max=200"`
	Email       string   `json:"email" validate:"required,email"`
	Role        string   `json:"role" validate:"required,oneof=agent manager admin"`
	Status      string   `json:"status" validate:"omitempty,oneof=active busy inactive offline"`
	Categories  []string `json:"categories" validate:"dive,required,max=64"`
	Skills      []string `json:"skills" validate:"dive,required,max=64"`
	MaxCapacity int      `json:"max_capacity" validate:"min=1,max=1000"`
	AgentLevel  int      `json:"agent_level" validate:"min=1,max=3"`
}

// AgentListFilter narrows ListAgents.
type AgentListFilter struct {
	Role     *domain.Role
	Status   *domain.AgentStatus
	Category *string
}

func (s *AgentService) CreateAgent(ctx context.Context, input AgentInput) (*domain.Agent, error) {
	if err := s.validateInput(ctx, &input); err != nil {
		return nil, err
	}
	status := domain.AgentStatus(input.Status)
	if status == "" {
		status = domain.AgentStatusActive
	}
	if status == domain.AgentStatusBusy {
		return nil, apperrors.NewValidationError("busy is derived from load", map[string]any{"status": "busy"})
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.clock()
	agent := &domain.Agent{
		ID:          id,
		Name:        input.Name,
		Email:       input.Email,
		Role:        domain.Role(input.Role),
		Status:      status,
		Categories:  input.Categories,
		Skills:      input.Skills,
		MaxCapacity: input.MaxCapacity,
		AgentLevel:  input.AgentLevel,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("agent already exists", map[string]any{"id": id, "email": input.Email})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("agent created", zap.String("agent_id", agent.ID), zap.String("role", string(agent.Role)))
	s.publishChanged(ctx, agent)
	return agent, nil
}

// UpdateAgent replaces profile fields. Raising capacity may free an agent
// for routing, so a change event is always published.
func (s *AgentService) UpdateAgent(ctx context.Context, id string, input AgentInput) (*domain.Agent, error) {
	if err := s.validateInput(ctx, &input); err != nil {
		return nil, err
	}
	agent := &domain.Agent{
		ID:          id,
		Name:        input.Name,
		Email:       input.Email,
		Role:        domain.Role(input.Role),
		Categories:  input.Categories,
		Skills:      input.Skills,
		MaxCapacity: input.MaxCapacity,
		AgentLevel:  input.AgentLevel,
		UpdatedAt:   s.clock(),
	}
	if err := s.agents.Update(ctx, agent); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": id})
		case errors.Is(err, repository.ErrConflict):
			return nil, apperrors.NewConflict("email already in use", map[string]any{"email": input.Email})
		}
		return nil, apperrors.MapError(err)
	}
	s.publishChanged(ctx, agent)
	return agent, nil
}

// SetAgentStatus changes availability. Requesting active on a full agent
// lands on busy.
func (s *AgentService) SetAgentStatus(ctx context.Context, id string, status domain.AgentStatus) (*domain.Agent, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid agent status", map[string]any{"status": string(status)})
	}
	if status == domain.AgentStatusBusy {
		return nil, apperrors.NewValidationError("busy is derived from load", map[string]any{"status": string(status)})
	}
	agent, err := s.agents.SetStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("agent status changed", zap.String("agent_id", id), zap.String("status", string(agent.Status)))
	s.publishChanged(ctx, agent)
	return agent, nil
}

func (s *AgentService) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

func (s *AgentService) ListAgents(ctx context.Context, filter AgentListFilter) ([]domain.Agent, error) {
	repoFilter := repository.AgentFilter{Category: filter.Category}
	if filter.Role != nil {
		repoFilter.Roles = []domain.Role{*filter.Role}
	}
	if filter.Status != nil {
		repoFilter.Statuses = []domain.AgentStatus{*filter.Status}
	}
	agents, err := s.agents.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

func (s *AgentService) validateInput(ctx context.Context, input *AgentInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Categories = normalizeSet(input.Categories, false)
	input.Skills = normalizeSet(input.Skills, true)
	if err := s.validator.Struct(*input); err != nil {
		return err
	}
	if s.categories != nil {
		return s.categories.requireAll(ctx, "categories", input.Categories)
	}
	return nil
}

func (s *AgentService) publishChanged(ctx context.Context, agent *domain.Agent) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAgentChanged,
		AgentID:   agent.ID,
		Actor:     domain.SystemActor,
		Timestamp: s.clock(),
		Payload: events.AgentChangedPayload{
			Status:             agent.Status,
			CurrentTicketCount: agent.CurrentTicketCount,
			MaxCapacity:        agent.MaxCapacity,
		},
	})
}

// normalizeSet trims, drops empties and duplicates (case-insensitively),
// and optionally lowercases.
func normalizeSet(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if slices.ContainsFunc(out, func(existing string) bool { return strings.EqualFold(existing, v) }) {
			continue
		}
		out = append(out, v)
	}
	return out
}
