package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// ImageRepository defines storage operations for uploaded image metadata.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id uint) (*models.Image, error)
	ListByOwner(ctx context.Context, ownerID uint, page Page) ([]models.Image, error)
	UpdateAlt(ctx context.Context, id uint, alt string) error
	Delete(ctx context.Context, id uint) error
	CountForeignPosts(ctx context.Context, imageID, ownerID uint) (int64, error)
	PathsByOwner(ctx context.Context, ownerID uint) ([]string, error)
	PathsByNonAdmins(ctx context.Context) ([]string, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a repository implementation for image metadata.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		return writeError(err, "src")
	}
	return nil
}

func (r *imageRepository) GetByID(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).First(&image, id).Error; err != nil {
		return nil, readError(err, "Image", id)
	}
	return &image, nil
}

func (r *imageRepository) ListByOwner(ctx context.Context, ownerID uint, page Page) ([]models.Image, error) {
	var images []models.Image
	err := page.apply(r.db.WithContext(ctx)).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&images).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return images, nil
}

func (r *imageRepository) UpdateAlt(ctx context.Context, id uint, alt string) error {
	result := r.db.WithContext(ctx).Model(&models.Image{ID: id}).Update("alt", alt)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Image", id)
	}
	return nil
}

// Delete removes the row. Posts referencing the image have image_id cleared by the store.
func (r *imageRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Image{}, id)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Image", id)
	}
	return nil
}

// CountForeignPosts counts posts by authors other than ownerID that reference the image.
func (r *imageRepository) CountForeignPosts(ctx context.Context, imageID, ownerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("image_id = ? AND author_id <> ?", imageID, ownerID).
		Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *imageRepository) PathsByOwner(ctx context.Context, ownerID uint) ([]string, error) {
	var paths []string
	if err := r.db.WithContext(ctx).Model(&models.Image{}).Where("owner_id = ?", ownerID).Pluck("path", &paths).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return paths, nil
}

// PathsByNonAdmins lists storage paths of every image owned by a non-admin user.
func (r *imageRepository) PathsByNonAdmins(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&models.Image{}).
		Joins("JOIN users ON users.id = images.owner_id").
		Where("users.is_admin = ?", false).
		Pluck("images.path", &paths).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return paths, nil
}
