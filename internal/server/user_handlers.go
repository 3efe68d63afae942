package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/users (admin only)
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.userService.List(c.UserContext(), actor(c), parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(users)
}

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.Get(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}

// UpdateMe handles PATCH /api/users/me
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateSelf(c.UserContext(), actor(c), service.UpdateUserInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/users/:id
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.userService.Delete(c.UserContext(), actor(c), id))
}

// SetUserAdmin handles PATCH /api/admin/users/:id
func (s *Server) SetUserAdmin(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		IsAdmin *bool `json:"is_admin"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.IsAdmin == nil {
		return models.RespondWithError(c, models.NewValidationError("is_admin is required",
			models.FieldIssue{Field: "is_admin", Message: "required"}))
	}

	user, err := s.userService.SetAdmin(c.UserContext(), actor(c), id, *req.IsAdmin)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}
