package server

import (
	"bytes"
	"encoding/json"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPosts handles GET /api/posts?tag=&author=&q=
func (s *Server) ListPosts(c *fiber.Ctx) error {
	author := c.QueryInt("author", 0)
	if author < 0 {
		author = 0
	}

	posts, err := s.postService.List(c.UserContext(), actor(c), repository.PostFilter{
		Tag:      c.Query("tag"),
		AuthorID: uint(author),
		Query:    c.Query("q"),
		Page:     parsePage(c),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		Published bool     `json:"published"`
		Tags      []string `json:"tags"`
		ImageID   *uint    `json:"image_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), actor(c), service.CreatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
		Tags:      req.Tags,
		ImageID:   req.ImageID,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id. An explicit "image_id": null detaches the image.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title     *string         `json:"title"`
		Content   *string         `json:"content"`
		Published *bool           `json:"published"`
		Tags      *[]string       `json:"tags"`
		ImageID   json.RawMessage `json:"image_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	in := service.UpdatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
		Tags:      req.Tags,
	}
	switch {
	case len(req.ImageID) == 0:
	case bytes.Equal(bytes.TrimSpace(req.ImageID), []byte("null")):
		in.ClearImage = true
	default:
		var imageID uint
		if err := json.Unmarshal(req.ImageID, &imageID); err != nil {
			return models.RespondWithError(c, models.NewValidationError("Invalid post",
				models.FieldIssue{Field: "image_id", Message: "must be a positive integer or null"}))
		}
		in.ImageID = &imageID
	}

	post, err := s.postService.Update(c.UserContext(), actor(c), id, in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.postService.Delete(c.UserContext(), actor(c), id))
}

// Upvote handles POST /api/posts/:id/upvote
func (s *Server) Upvote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.voteService.Upvote(c.UserContext(), actor(c).UserID, id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(post)
}

// Downvote handles POST /api/posts/:id/downvote
func (s *Server) Downvote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.voteService.Downvote(c.UserContext(), actor(c).UserID, id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(post)
}

// ListTags handles GET /api/tags
func (s *Server) ListTags(c *fiber.Ctx) error {
	tags, err := s.postService.ListTags(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(tags)
}

// ListTagPosts handles GET /api/tags/:name/posts
func (s *Server) ListTagPosts(c *fiber.Ctx) error {
	posts, err := s.postService.List(c.UserContext(), actor(c), repository.PostFilter{
		Tag:  c.Params("name"),
		Page: parsePage(c),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(posts)
}
