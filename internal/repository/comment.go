package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetVisible(ctx context.Context, id, viewerID uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, page Page) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return writeError(err, "post_id")
	}
	return nil
}

// GetVisible loads the comment with its post when the post is visible to viewerID.
func (r *commentRepository) GetVisible(ctx context.Context, id, viewerID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("comments.*").
		Scopes(VisibleComments(viewerID)).
		Preload("Author").
		Preload("Post").
		Where("comments.id = ?", id).
		First(&comment).Error
	if err != nil {
		return nil, readError(err, "Comment", id)
	}
	return &comment, nil
}

// ListByPost returns comments oldest first. Callers check the post's visibility.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, page Page) ([]models.Comment, error) {
	var comments []models.Comment
	err := page.apply(r.db.WithContext(ctx)).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	result := r.db.WithContext(ctx).Model(&models.Comment{ID: id}).Update("content", content)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}
