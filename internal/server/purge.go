package server

import (
	"context"
	"strings"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// purgeTrigger is the part of the purge service the request path needs.
type purgeTrigger interface {
	Trigger(ctx context.Context)
}

// PurgeTrigger kicks off a due purge on every GET and every /api/auth request. It never
// waits for the purge and never touches the response.
func PurgeTrigger(p purgeTrigger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p != nil && (c.Method() == fiber.MethodGet || strings.HasPrefix(c.Path(), "/api/auth")) {
			p.Trigger(c.UserContext())
		}
		return c.Next()
	}
}

// ForcePurge handles POST /api/admin/purge
func (s *Server) ForcePurge(c *fiber.Ctx) error {
	report, err := s.purgeService.Force(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(report)
}
