package repository

import (
	"context"
	"strings"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// PostFilter narrows List. Zero fields are ignored.
type PostFilter struct {
	Tag      string
	AuthorID uint
	Query    string
	Page     Page
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetVisible(ctx context.Context, id, viewerID uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, viewerID uint) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error
	Delete(ctx context.Context, id uint) error
	CountByImage(ctx context.Context, imageID uint) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and links its tags. Tags must already exist.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Tags.*").Create(post).Error; err != nil {
		return writeError(err, "image_id")
	}
	return nil
}

// applyPostDetails adds subqueries to fetch counts and voted status in a single query.
func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, " +
		"(SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.is_upvote = ?) AS votes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM votes WHERE votes.post_id = posts.id AND votes.user_id = ?) AS upvoted", true, viewerID)
	}
	return db.Select(selectQuery+", false AS upvoted", true)
}

func (r *postRepository) detailed(ctx context.Context, viewerID uint) *gorm.DB {
	return applyPostDetails(r.db.WithContext(ctx).Model(&models.Post{}), viewerID).
		Scopes(VisiblePosts(viewerID)).
		Preload("Author").
		Preload("Image").
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("tags.name ASC")
		})
}

// GetVisible returns the post if viewerID may read it, NotFound otherwise.
func (r *postRepository) GetVisible(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	if err := r.detailed(ctx, viewerID).Where("posts.id = ?", id).First(&post).Error; err != nil {
		return nil, readError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, viewerID uint) ([]models.Post, error) {
	var posts []models.Post
	db := r.detailed(ctx, viewerID)

	if filter.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", filter.AuthorID)
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		db = db.Where(
			"EXISTS (SELECT 1 FROM post_tags JOIN tags ON tags.id = post_tags.tag_id WHERE post_tags.post_id = posts.id AND tags.name = ?)",
			tag,
		)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("(LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ?)", like, like)
	}

	err := filter.Page.apply(db).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Update writes the editable columns, including zero values.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).
		Model(post).
		Select("title", "content", "published", "image_id").
		Updates(post).Error
	if err != nil {
		return writeError(err, "image_id")
	}
	return nil
}

func (r *postRepository) ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error {
	if err := r.db.WithContext(ctx).Model(post).Association("Tags").Replace(tags); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the post and its tag links. Comments and votes cascade.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Select("Tags").Delete(&models.Post{ID: id})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// CountByImage returns how many posts reference the image.
func (r *postRepository) CountByImage(ctx context.Context, imageID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("image_id = ?", imageID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
