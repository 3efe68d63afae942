package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListFinderLevels handles GET /api/finder/levels
func (s *Server) ListFinderLevels(c *fiber.Ctx) error {
	levels, err := s.finderService.ListLevels(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(levels)
}

// GetFinderLevel handles GET /api/finder/levels/:slug
func (s *Server) GetFinderLevel(c *fiber.Ctx) error {
	level, err := s.finderService.GetLevel(c.UserContext(), c.Params("slug"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(level)
}

// StartFinderRound handles POST /api/finder/levels/:slug/rounds
func (s *Server) StartFinderRound(c *fiber.Ctx) error {
	var req struct {
		PlayerName string `json:"player_name"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	round, err := s.finderService.StartRound(c.UserContext(), actor(c), c.Params("slug"), req.PlayerName)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(round)
}

// GetFinderRound handles GET /api/finder/rounds/:id
func (s *Server) GetFinderRound(c *fiber.Ctx) error {
	round, err := s.finderService.GetRound(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(round)
}

// GuessFinder handles POST /api/finder/rounds/:id/guesses
func (s *Server) GuessFinder(c *fiber.Ctx) error {
	var req struct {
		CharacterID uint `json:"character_id"`
		X           int  `json:"x"`
		Y           int  `json:"y"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.finderService.Guess(c.UserContext(), c.Params("id"), service.GuessInput{
		CharacterID: req.CharacterID,
		X:           req.X,
		Y:           req.Y,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(result)
}

// GetFinderLeaderboard handles GET /api/finder/levels/:slug/leaderboard?limit=
func (s *Server) GetFinderLeaderboard(c *fiber.Ctx) error {
	rounds, err := s.finderService.Leaderboard(c.UserContext(), c.Params("slug"), c.QueryInt("limit", 0))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(rounds)
}
