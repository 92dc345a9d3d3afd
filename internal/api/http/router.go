package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Dev-Manje/helpdesk/internal/api/http/handlers"
	"github.com/Dev-Manje/helpdesk/internal/auth"
	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Agents         *handlers.AgentsHandler
	SLA            *handlers.SLAHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}
	if cfg.RateLimiter != nil {
		protected = append(protected, cfg.RateLimiter.Handle)
	}
	staff := auth.RequireStaff()
	supervisor := auth.RequireSupervisor()
	admin := auth.RequireRole(domain.RoleAdmin)

	tickets := app.Group("/tickets", protected...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/urgency", staff, cfg.Tickets.UpdateUrgency)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/timeline", cfg.Tickets.Timeline)
	tickets.Post("/:id/assign", staff, cfg.Tickets.Assign)
	tickets.Post("/:id/escalate", cfg.Tickets.Escalate)

	agents := app.Group("/agents", protected...)
	agents.Get("/", staff, cfg.Agents.ListAgents)
	agents.Get("/:id", staff, cfg.Agents.GetAgent)
	agents.Post("/", admin, cfg.Agents.CreateAgent)
	agents.Put("/:id", admin, cfg.Agents.UpdateAgent)
	agents.Patch("/:id/status", supervisor, cfg.Agents.SetStatus)

	categories := app.Group("/categories", protected...)
	categories.Get("/", cfg.Agents.ListCategories)
	categories.Post("/", admin, cfg.Agents.CreateCategory)
	categories.Delete("/:name", admin, cfg.Agents.DeleteCategory)

	sla := app.Group("/sla", protected...)
	sla.Get("/rules", cfg.SLA.ListRules)
	sla.Get("/rules/:level", cfg.SLA.GetRule)
	sla.Put("/rules/:level", supervisor, cfg.SLA.PutRule)
	sla.Delete("/rules/:level", admin, cfg.SLA.DeleteRule)
	sla.Get("/status", supervisor, cfg.SLA.Status)

	app.Get("/events", append(protected, staff, cfg.Events.Stream)...)
}
