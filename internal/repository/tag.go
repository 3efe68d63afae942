package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository manages the shared tag vocabulary.
type TagRepository interface {
	FindOrCreate(ctx context.Context, names []string) ([]models.Tag, error)
	ListWithCounts(ctx context.Context) ([]models.Tag, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// FindOrCreate upserts the names, which must already be normalized, and returns every tag.
func (r *tagRepository) FindOrCreate(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows := make([]models.Tag, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.Tag{Name: name})
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var tags []models.Tag
	if err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// ListWithCounts returns every tag with its number of published posts.
func (r *tagRepository) ListWithCounts(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).
		Model(&models.Tag{}).
		Select("tags.*, (SELECT COUNT(*) FROM post_tags JOIN posts ON posts.id = post_tags.post_id "+
			"WHERE post_tags.tag_id = tags.id AND posts.published = ?) AS posts_count", true).
		Order("tags.name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// DeleteOrphans removes tags no post links to.
func (r *tagRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM post_tags WHERE post_tags.tag_id = tags.id)").
		Delete(&models.Tag{})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}
