package service

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"gorm.io/gorm"
)

// CommentService handles comments. Every read goes through the parent post's visibility.
type CommentService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	profiles repository.ProfileRepository
	notify   *NotificationService
}

func NewCommentService(db *gorm.DB, notify *NotificationService) *CommentService {
	return &CommentService{
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		profiles: repository.NewProfileRepository(db),
		notify:   notify,
	}
}

func validateComment(content string) error {
	var issues validation.Issues
	issues.Required("content", content)
	issues.MaxLen("content", content, validation.CommentMax)
	return issues.Err("Invalid comment")
}

// Create adds a comment to a post the actor can read and notifies the post's author.
func (s *CommentService) Create(ctx context.Context, actor Actor, postID uint, content string) (*models.Comment, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("Sign in to comment")
	}
	content = strings.TrimSpace(content)
	if err := validateComment(content); err != nil {
		return nil, err
	}

	post, err := s.posts.GetVisible(ctx, postID, actor.UserID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: post.ID, AuthorID: actor.UserID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.AuthorID != actor.UserID {
		if author, err := s.profiles.GetByUserID(ctx, actor.UserID); err == nil {
			s.notify.NotifyUser(ctx, post.AuthorID, author, Notice{
				Kind:   models.NotificationComment,
				Header: fmt.Sprintf("%s commented on %q", author.Name, post.Title),
				Body:   truncate(content, 200),
				URL:    fmt.Sprintf("/posts/%d#comment-%d", post.ID, comment.ID),
			})
		}
	}

	return s.comments.GetVisible(ctx, comment.ID, actor.UserID)
}

// Get returns a comment of postID, NotFound unless the parent post is visible to actor.
func (s *CommentService) Get(ctx context.Context, actor Actor, postID, commentID uint) (*models.Comment, error) {
	comment, err := s.comments.GetVisible(ctx, commentID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != postID || !CanReadComment(comment, actor.ID()) {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return comment, nil
}

// Update edits the content. Only the comment's author may edit it.
func (s *CommentService) Update(ctx context.Context, actor Actor, postID, commentID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if err := validateComment(content); err != nil {
		return nil, err
	}
	comment, err := s.Get(ctx, actor, postID, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actor.UserID {
		return nil, models.NewUnauthorizedError("You can only edit your own comments")
	}
	if err := s.comments.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, postID, commentID)
}

// Delete removes a visible comment. Authors and admins may delete.
func (s *CommentService) Delete(ctx context.Context, actor Actor, postID, commentID uint) error {
	comment, err := s.Get(ctx, actor, postID, commentID)
	if err != nil {
		return err
	}
	if !CanMutate(comment.AuthorID, actor.UserID, actor.IsAdmin) {
		return models.NewUnauthorizedError("You can only delete your own comments")
	}
	return s.comments.Delete(ctx, comment.ID)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
