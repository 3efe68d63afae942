package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository stores at most one vote row per (post, user).
type VoteRepository interface {
	Upvote(ctx context.Context, postID, userID uint) (bool, error)
	Remove(ctx context.Context, postID, userID uint) (bool, error)
	Count(ctx context.Context, postID uint) (int64, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Upvote inserts the vote unless one exists and reports whether a row was written.
func (r *voteRepository) Upvote(ctx context.Context, postID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&models.Vote{PostID: postID, UserID: userID, IsUpvote: true})
	if result.Error != nil {
		return false, writeError(result.Error, "post_id")
	}
	return result.RowsAffected > 0, nil
}

// Remove deletes the vote if present. Deleting nothing is not an error.
func (r *voteRepository) Remove(ctx context.Context, postID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Vote{})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *voteRepository) Count(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Vote{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
