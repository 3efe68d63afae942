package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications?unseen=true
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	notifications, err := s.notificationService.List(c.UserContext(), actor(c).UserID,
		c.QueryBool("unseen", false), parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(notifications)
}

// MarkNotificationSeen handles PATCH /api/notifications/:id/seen
func (s *Server) MarkNotificationSeen(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.notificationService.MarkSeen(c.UserContext(), actor(c).UserID, id))
}

// MarkAllNotificationsSeen handles POST /api/notifications/seen
func (s *Server) MarkAllNotificationsSeen(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllSeen(c.UserContext(), actor(c).UserID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// DeleteNotification handles DELETE /api/notifications/:id
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.notificationService.Delete(c.UserContext(), actor(c).UserID, id))
}

// GetStats handles GET /api/stats
func (s *Server) GetStats(c *fiber.Ctx) error {
	summary, err := s.statsService.Summary(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(summary)
}
