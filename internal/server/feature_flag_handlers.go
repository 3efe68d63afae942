package server

import (
	"inkwell/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags lists the configured rules, the known flags and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":        s.featureFlags.Raw(),
		"registered": featureflags.Registered(),
		"evaluated":  s.featureFlags.Snapshot(actor(c).UserID),
	})
}
