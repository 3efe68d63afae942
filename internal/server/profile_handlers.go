package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListProfiles handles GET /api/profiles?q=
func (s *Server) ListProfiles(c *fiber.Ctx) error {
	profiles, err := s.profileService.List(c.UserContext(), actor(c), c.Query("q"), parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profiles)
}

// GetProfile handles GET /api/profiles/:id
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// GetMyProfile handles GET /api/profiles/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Mine(c.UserContext(), actor(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PATCH /api/profiles/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Name *string `json:"name"`
		Bio  *string `json:"bio"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateOwn(c.UserContext(), actor(c), service.UpdateProfileInput{
		Name: req.Name,
		Bio:  req.Bio,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// FollowProfile handles POST /api/profiles/:id/follow
func (s *Server) FollowProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.Follow(c.UserContext(), actor(c), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// UnfollowProfile handles DELETE /api/profiles/:id/follow
func (s *Server) UnfollowProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.Unfollow(c.UserContext(), actor(c), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// GetFollowers handles GET /api/profiles/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profiles, err := s.profileService.Followers(c.UserContext(), actor(c), id, parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profiles)
}

// GetFollowing handles GET /api/profiles/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profiles, err := s.profileService.Following(c.UserContext(), actor(c), id, parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profiles)
}
