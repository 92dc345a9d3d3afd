package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Dev-Manje/helpdesk/internal/api/dto"
	"github.com/Dev-Manje/helpdesk/internal/auth"
	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/service"
)

// TicketsHandler exposes ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
	escalation *service.EscalationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignment *service.AssignmentService, escalation *service.EscalationService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignment: assignment, escalation: escalation}
}

// CreateTicket POST /tickets. Missing agents or SLA rules do not fail the
// request; they come back as warnings.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.tickets.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		RequesterID:    req.RequesterID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Priority:       req.Priority,
		UrgencyLevel:   req.UrgencyLevel,
		RequiredSkills: req.RequiredSkills,
	})
	if err != nil {
		return err
	}
	resp := dto.CreateTicketResponse{
		Ticket:   dto.NewTicketResponse(result.Ticket),
		Warnings: make([]dto.WarningResponse, 0, len(result.Warnings)),
	}
	for _, w := range result.Warnings {
		resp.Warnings = append(resp.Warnings, dto.WarningResponse{Code: w.Code, Message: w.Message, Details: w.Details})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{
		AssigneeID: optionalString(c, "assignee_id"),
		Category:   optionalString(c, "category"),
		Breached:   optionalBool(c, "breached"),
	}
	for _, s := range parseList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	for _, s := range parseList(c.Query("urgency_level")) {
		if level := parseInt(s, 0); level > 0 {
			filter.UrgencyLevels = append(filter.UrgencyLevels, domain.UrgencyLevel(level))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := min(parseInt(c.Query("page_size"), 20), 100)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": page, "page_size": pageSize})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateTicketStatus(c.UserContext(), actor, c.Params("id"), domain.TicketEvent(req.Event), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateUrgency PATCH /tickets/:id/urgency.
func (h *TicketsHandler) UpdateUrgency(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUrgencyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateUrgency(c.UserContext(), actor, c.Params("id"), domain.UrgencyLevel(req.UrgencyLevel))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entry, err := h.tickets.RecordComment(c.UserContext(), actor, c.Params("id"), req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTimelineEntryResponse(entry)})
}

// Timeline GET /tickets/:id/timeline.
func (h *TicketsHandler) Timeline(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.Timeline(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TimelineEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewTimelineEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	ticket, err := h.assignment.AssignTicket(c.UserContext(), actor, c.Params("id"), req.AgentID, req.Override)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.escalation.EscalateTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
