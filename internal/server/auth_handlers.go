package server

import (
	"errors"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AuthResponse is returned by signup and signin.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      *models.User `json:"user"`
}

func (s *Server) issue(c *fiber.Ctx, status int, user *models.User) error {
	token, err := s.tokens.Issue(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.Status(status).JSON(AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		User:      user,
	})
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "User signed up",
		slog.Uint64("new_user_id", uint64(user.ID)),
	)
	return s.issue(c, fiber.StatusCreated, user)
}

// Signin handles POST /api/auth/signin. Bad credentials get an empty 401.
func (s *Server) Signin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).Send(nil)
	}
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return s.issue(c, fiber.StatusOK, user)
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.Get(c.UserContext(), actor(c).UserID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}
