package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
	"gorm.io/gorm"
)

const (
	DefaultImageMaxBytes = 5 << 20
	ImageMaxEdge         = 1600
	WebPQuality          = 80
	// ImageMaxPixels bounds the decoded bitmap; compressed size says little about it.
	ImageMaxPixels = 40_000_000
)

type UploadImageInput struct {
	ContentType string
	Content     []byte
	Alt         string
}

// ImageService stores uploads as WebP objects and tracks them as Image rows.
type ImageService struct {
	db       *gorm.DB
	images   repository.ImageRepository
	storage  storage.ObjectStorage
	maxBytes int64
}

func NewImageService(db *gorm.DB, store storage.ObjectStorage, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultImageMaxBytes
	}
	return &ImageService{
		db:       db,
		images:   repository.NewImageRepository(db),
		storage:  store,
		maxBytes: maxBytes,
	}
}

// Upload validates, downsizes and re-encodes the image, stores it and records it for actor.
func (s *ImageService) Upload(ctx context.Context, actor Actor, in UploadImageInput) (*models.Image, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("Sign in to upload images")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded",
			models.FieldIssue{Field: "image", Message: "is required"})
	}
	if int64(len(in.Content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d bytes)", s.maxBytes),
			models.FieldIssue{Field: "image", Message: "too large"})
	}
	var issues validation.Issues
	issues.MaxLen("alt", in.Alt, validation.AltMax)
	if err := issues.Err("Invalid image"); err != nil {
		return nil, err
	}

	detected := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type",
			models.FieldIssue{Field: "image", Message: "must be a JPEG, PNG, GIF or WebP image"})
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file",
			models.FieldIssue{Field: "image", Message: "could not be decoded"})
	}
	if int64(cfg.Width)*int64(cfg.Height) > ImageMaxPixels {
		return nil, models.NewValidationError(fmt.Sprintf("Image dimensions too large (max %d pixels)", ImageMaxPixels),
			models.FieldIssue{Field: "image", Message: "dimensions too large"})
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file",
			models.FieldIssue{Field: "image", Message: "could not be decoded"})
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format",
			models.FieldIssue{Field: "image", Message: "unsupported format"})
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") &&
		!isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch",
			models.FieldIssue{Field: "image", Message: "content type does not match data"})
	}

	resized := resizeToFit(decoded, ImageMaxEdge, ImageMaxEdge)
	encoded, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if s.storage == nil {
		return nil, models.NewInternalError(errNoStorage)
	}
	objectPath := storage.NewObjectPath(fmt.Sprintf("images/%d", actor.UserID), ".webp")
	uploaded, err := s.storage.Upload(ctx, objectPath, encoded, "image/webp", false)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	b := resized.Bounds()
	record := &models.Image{
		OwnerID:   actor.UserID,
		Src:       uploaded.PublicURL,
		Path:      uploaded.Path,
		Alt:       strings.TrimSpace(in.Alt),
		MimeType:  "image/webp",
		Width:     b.Dx(),
		Height:    b.Dy(),
		SizeBytes: int64(len(encoded)),
	}
	if err := s.images.Create(ctx, record); err != nil {
		removeObject(ctx, s.storage, uploaded.Path)
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "Image uploaded",
		slog.Uint64("image_id", uint64(record.ID)),
		slog.String("path", record.Path),
		slog.Int64("bytes", record.SizeBytes),
	)
	return record, nil
}

// ListOwn returns the actor's images, newest first.
func (s *ImageService) ListOwn(ctx context.Context, actor Actor, page repository.Page) ([]models.Image, error) {
	return s.images.ListByOwner(ctx, actor.UserID, page.Normalize())
}

// Get is public: images are reachable by URL anyway.
func (s *ImageService) Get(ctx context.Context, id uint) (*models.Image, error) {
	return s.images.GetByID(ctx, id)
}

// UpdateAlt changes the alt text. Owner only.
func (s *ImageService) UpdateAlt(ctx context.Context, actor Actor, id uint, alt string) (*models.Image, error) {
	var issues validation.Issues
	issues.MaxLen("alt", alt, validation.AltMax)
	if err := issues.Err("Invalid image"); err != nil {
		return nil, err
	}

	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img.OwnerID != actor.UserID {
		return nil, models.NewUnauthorizedError("You can only edit your own images")
	}
	if err := s.images.UpdateAlt(ctx, id, strings.TrimSpace(alt)); err != nil {
		return nil, err
	}
	return s.images.GetByID(ctx, id)
}

// Delete removes an image the actor owns (or any, for admins). Images used by another
// author's post cannot be deleted. The owner's own posts lose the reference.
func (s *ImageService) Delete(ctx context.Context, actor Actor, id uint) error {
	var objectPath string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		images := repository.NewImageRepository(tx)
		img, err := images.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanMutate(img.OwnerID, actor.UserID, actor.IsAdmin) {
			return models.NewUnauthorizedError("You can only delete your own images")
		}
		foreign, err := images.CountForeignPosts(ctx, img.ID, img.OwnerID)
		if err != nil {
			return err
		}
		if foreign > 0 {
			return models.NewValidationError("Image is used by other posts",
				models.FieldIssue{Field: "image_id", Message: "referenced by posts of other authors"})
		}
		if err := tx.Model(&models.Post{}).Where("image_id = ?", img.ID).Update("image_id", nil).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := images.Delete(ctx, img.ID); err != nil {
			return err
		}
		objectPath = img.Path
		return nil
	})
	if err != nil {
		return err
	}
	removeObject(ctx, s.storage, objectPath)
	return nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if scaleH := float64(maxHeight) / float64(h); scaleH < scale {
		scale = scaleH
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	return decodedFormatToMime(format) != ""
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

// errNoStorage guards services built without an object store.
var errNoStorage = errors.New("object storage not configured")
