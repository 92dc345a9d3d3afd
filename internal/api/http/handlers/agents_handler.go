package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Dev-Manje/helpdesk/internal/api/dto"
	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/service"
)

// AgentsHandler exposes the agent directory and category administration.
type AgentsHandler struct {
	agents     *service.AgentService
	categories *service.CategoryService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agents *service.AgentService, categories *service.CategoryService) *AgentsHandler {
	return &AgentsHandler{agents: agents, categories: categories}
}

func agentInput(req dto.AgentRequest) service.AgentInput {
	return service.AgentInput{
		ID:          req.ID,
		Name:        req.Name,
		Email:       req.Email,
		Role:        req.Role,
		Status:      req.Status,
		Categories:  req.Categories,
		Skills:      req.Skills,
		MaxCapacity: req.MaxCapacity,
		AgentLevel:  req.AgentLevel,
	}
}

// CreateAgent POST /agents.
func (h *AgentsHandler) CreateAgent(c *fiber.Ctx) error {
	var req dto.AgentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	agent, err := h.agents.CreateAgent(c.UserContext(), agentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// UpdateAgent PUT /agents/:id.
func (h *AgentsHandler) UpdateAgent(c *fiber.Ctx) error {
	var req dto.AgentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	agent, err := h.agents.UpdateAgent(c.UserContext(), c.Params("id"), agentInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// SetStatus PATCH /agents/:id/status.
func (h *AgentsHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.AgentStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	agent, err := h.agents.SetAgentStatus(c.UserContext(), c.Params("id"), domain.AgentStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// GetAgent GET /agents/:id.
func (h *AgentsHandler) GetAgent(c *fiber.Ctx) error {
	agent, err := h.agents.GetAgent(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// ListAgents GET /agents.
func (h *AgentsHandler) ListAgents(c *fiber.Ctx) error {
	filter := service.AgentListFilter{Category: optionalString(c, "category")}
	if role := optionalString(c, "role"); role != nil {
		r := domain.Role(*role)
		filter.Role = &r
	}
	if status := optionalString(c, "status"); status != nil {
		s := domain.AgentStatus(*status)
		filter.Status = &s
	}
	agents, err := h.agents.ListAgents(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewAgentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /categories.
func (h *AgentsHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.CategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	category, err := h.categories.CreateCategory(c.UserContext(), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CategoryResponse{
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   category.CreatedAt,
	}})
}

// ListCategories GET /categories.
func (h *AgentsHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.categories.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, dto.CategoryResponse{
			Name:        category.Name,
			Description: category.Description,
			CreatedAt:   category.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteCategory DELETE /categories/:name.
func (h *AgentsHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.categories.DeleteCategory(c.UserContext(), c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
