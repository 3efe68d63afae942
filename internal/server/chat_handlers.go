package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListChats handles GET /api/chats
func (s *Server) ListChats(c *fiber.Ctx) error {
	chats, err := s.chatService.List(c.UserContext(), actor(c).UserID, parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(chats)
}

// SendChat handles POST /api/chats. The message lands in a chat the caller already owns
// with these participants, or in a new one.
func (s *Server) SendChat(c *fiber.Ctx) error {
	var req struct {
		ParticipantIDs []uint `json:"participant_ids"`
		Body           string `json:"body"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	chat, err := s.chatService.SendToParticipants(c.UserContext(), actor(c).UserID, req.ParticipantIDs, req.Body)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

// GetChat handles GET /api/chats/:id
func (s *Server) GetChat(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	chat, err := s.chatService.Get(c.UserContext(), actor(c).UserID, id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(chat)
}

// GetChatMessages handles GET /api/chats/:id/messages
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	messages, err := s.chatService.Messages(c.UserContext(), actor(c).UserID, id, parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(messages)
}

// PostChatMessage handles POST /api/chats/:id/messages
func (s *Server) PostChatMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.chatService.PostMessage(c.UserContext(), actor(c).UserID, id, req.Body)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// LeaveChat handles POST /api/chats/:id/leave
func (s *Server) LeaveChat(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.chatService.Leave(c.UserContext(), actor(c).UserID, id))
}

// DeleteChat handles DELETE /api/chats/:id
func (s *Server) DeleteChat(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.chatService.Delete(c.UserContext(), actor(c), id))
}
