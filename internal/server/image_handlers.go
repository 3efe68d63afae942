package server

import (
	"io"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/images (multipart field "image", optional "alt")
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, models.NewValidationError("No file uploaded",
			models.FieldIssue{Field: "image", Message: "required"}))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, models.NewValidationError("Unable to read uploaded file"))
	}

	img, err := s.imageService.Upload(c.UserContext(), actor(c), service.UploadImageInput{
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
		Alt:         c.FormValue("alt"),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(img)
}

// ListMyImages handles GET /api/images
func (s *Server) ListMyImages(c *fiber.Ctx) error {
	images, err := s.imageService.ListOwn(c.UserContext(), actor(c), parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(images)
}

// GetImage handles GET /api/images/:id
func (s *Server) GetImage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	img, err := s.imageService.Get(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(img)
}

// UpdateImage handles PATCH /api/images/:id (alt text only)
func (s *Server) UpdateImage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Alt string `json:"alt"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	img, err := s.imageService.UpdateAlt(c.UserContext(), actor(c), id, req.Alt)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(img)
}

// DeleteImage handles DELETE /api/images/:id
func (s *Server) DeleteImage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return respondNoContent(c, s.imageService.Delete(c.UserContext(), actor(c), id))
}
