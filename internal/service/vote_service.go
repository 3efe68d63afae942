package service

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"gorm.io/gorm"
)

// VoteService applies the one-vote-per-user-per-post toggle.
type VoteService struct {
	db       *gorm.DB
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	notify   *NotificationService
}

func NewVoteService(db *gorm.DB, notify *NotificationService) *VoteService {
	return &VoteService{
		db:       db,
		posts:    repository.NewPostRepository(db),
		profiles: repository.NewProfileRepository(db),
		notify:   notify,
	}
}

// Upvote records userID's vote on a post they can read. An existing vote is left as is.
// The post's author is notified on the first vote only.
func (s *VoteService) Upvote(ctx context.Context, userID, postID uint) (*models.Post, error) {
	var (
		post     *models.Post
		inserted bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		post, err = repository.NewPostRepository(tx).GetVisible(ctx, postID, userID)
		if err != nil {
			return err
		}
		inserted, err = repository.NewVoteRepository(tx).Upvote(ctx, post.ID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if inserted && post.AuthorID != userID {
		if voter, err := s.profiles.GetByUserID(ctx, userID); err == nil {
			s.notify.NotifyUser(ctx, post.AuthorID, voter, Notice{
				Kind:   models.NotificationVote,
				Header: fmt.Sprintf("%s upvoted %q", voter.Name, post.Title),
				URL:    fmt.Sprintf("/posts/%d", post.ID),
			})
		}
	}

	return s.posts.GetVisible(ctx, postID, userID)
}

// Downvote removes userID's vote. Removing a vote that does not exist succeeds.
func (s *VoteService) Downvote(ctx context.Context, userID, postID uint) (*models.Post, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := repository.NewPostRepository(tx).GetVisible(ctx, postID, userID)
		if err != nil {
			return err
		}
		_, err = repository.NewVoteRepository(tx).Remove(ctx, post.ID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.posts.GetVisible(ctx, postID, userID)
}
