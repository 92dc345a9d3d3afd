package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Dev-Manje/helpdesk/internal/api/dto"
	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/service"
)

// SLAHandler exposes SLA rule administration and sweep status.
type SLAHandler struct {
	policy *service.SLAPolicyService
	clock  *service.SLAClock
}

// NewSLAHandler constructs handler.
func NewSLAHandler(policy *service.SLAPolicyService, clock *service.SLAClock) *SLAHandler {
	return &SLAHandler{policy: policy, clock: clock}
}

// ListRules GET /sla/rules.
func (h *SLAHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.policy.ListRules(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.SLARuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, dto.NewSLARuleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRule GET /sla/rules/:level.
func (h *SLAHandler) GetRule(c *fiber.Ctx) error {
	level, err := urgencyParam(c)
	if err != nil {
		return err
	}
	rule, err := h.policy.GetRule(c.UserContext(), domain.UrgencyLevel(level))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLARuleResponse(rule)})
}

// PutRule PUT /sla/rules/:level. Existing tickets keep their deadlines.
func (h *SLAHandler) PutRule(c *fiber.Ctx) error {
	level, err := urgencyParam(c)
	if err != nil {
		return err
	}
	var req dto.SLARuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.policy.UpsertRule(c.UserContext(), service.SLARuleInput{
		UrgencyLevel:        level,
		ResponseTimeHours:   req.ResponseTimeHours,
		ResolutionTimeHours: req.ResolutionTimeHours,
		WarningTimeHours:    req.WarningTimeHours,
		EscalationTimeHours: req.EscalationTimeHours,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLARuleResponse(rule)})
}

// DeleteRule DELETE /sla/rules/:level.
func (h *SLAHandler) DeleteRule(c *fiber.Ctx) error {
	level, err := urgencyParam(c)
	if err != nil {
		return err
	}
	if err := h.policy.DeleteRule(c.UserContext(), domain.UrgencyLevel(level)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Status GET /sla/status reports the most recent sweep.
func (h *SLAHandler) Status(c *fiber.Ctx) error {
	report := h.clock.LastReport()
	if report == nil {
		return c.JSON(fiber.Map{"data": fiber.Map{"status": "pending"}})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "ok", "last_sweep": report}})
}
