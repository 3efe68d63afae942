package service

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"gorm.io/gorm"
)

// PostService owns posts, their tags and the post side of image lifetimes.
type PostService struct {
	db       *gorm.DB
	posts    repository.PostRepository
	comments repository.CommentRepository
	tags     repository.TagRepository
	storage  storage.ObjectStorage
}

type CreatePostInput struct {
	Title     string
	Content   string
	Published bool
	Tags      []string
	ImageID   *uint
}

// UpdatePostInput is a partial update; nil fields are left unchanged.
type UpdatePostInput struct {
	Title     *string
	Content   *string
	Published *bool
	Tags      *[]string
	ImageID   *uint
	// ClearImage detaches the image. It wins over ImageID.
	ClearImage bool
}

func NewPostService(db *gorm.DB, store storage.ObjectStorage) *PostService {
	return &PostService{
		db:       db,
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		tags:     repository.NewTagRepository(db),
		storage:  store,
	}
}

// List returns the posts visible to actor matching filter, newest first.
func (s *PostService) List(ctx context.Context, actor Actor, filter repository.PostFilter) ([]models.Post, error) {
	filter.Page = filter.Page.Normalize()
	return s.posts.List(ctx, filter, actor.UserID)
}

// Get returns the post, or NotFound when actor may not read it.
func (s *PostService) Get(ctx context.Context, actor Actor, id uint) (*models.Post, error) {
	return s.posts.GetVisible(ctx, id, actor.UserID)
}

// ListTags returns every tag with its published post count.
func (s *PostService) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.FamilyTags, cache.TagListKey, &tags, cache.TagListTTL, func() error {
		var err error
		tags, err = s.tags.ListWithCounts(ctx)
		return err
	})
	return tags, err
}

func validatePostFields(title, content *string) validation.Issues {
	var issues validation.Issues
	if title != nil {
		issues.Required("title", *title)
		issues.MaxLen("title", *title, validation.TitleMax)
	}
	if content != nil {
		issues.Required("content", *content)
		issues.MaxLen("content", *content, validation.ContentMax)
	}
	return issues
}

// checkImage verifies imageID exists and belongs to userID.
func checkImage(ctx context.Context, images repository.ImageRepository, imageID, userID uint) error {
	img, err := images.GetByID(ctx, imageID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewInvalidReferenceError("image_id", err)
		}
		return err
	}
	if img.OwnerID != userID {
		return models.NewValidationError("Invalid image",
			models.FieldIssue{Field: "image_id", Message: "must reference an image you uploaded"})
	}
	return nil
}

func (s *PostService) Create(ctx context.Context, actor Actor, in CreatePostInput) (*models.Post, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("Sign in to post")
	}

	in.Title = strings.TrimSpace(in.Title)
	issues := validatePostFields(&in.Title, &in.Content)
	tagNames, err := validation.NormalizeTags(in.Tags)
	issues.Check("tags", err)
	if err := issues.Err("Invalid post"); err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:  actor.UserID,
		Title:     in.Title,
		Content:   in.Content,
		Published: in.Published,
		ImageID:   in.ImageID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ImageID != nil {
			if err := checkImage(ctx, repository.NewImageRepository(tx), *in.ImageID, actor.UserID); err != nil {
				return err
			}
		}
		tags, err := repository.NewTagRepository(tx).FindOrCreate(ctx, tagNames)
		if err != nil {
			return err
		}
		post.Tags = tags
		return repository.NewPostRepository(tx).Create(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateTags(ctx)
	return s.posts.GetVisible(ctx, post.ID, actor.UserID)
}

// Update edits a post. Only the author may edit, and the post must be visible to them.
func (s *PostService) Update(ctx context.Context, actor Actor, id uint, in UpdatePostInput) (*models.Post, error) {
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		in.Title = &trimmed
	}
	issues := validatePostFields(in.Title, in.Content)
	var tagNames []string
	if in.Tags != nil {
		var err error
		tagNames, err = validation.NormalizeTags(*in.Tags)
		issues.Check("tags", err)
	}
	if err := issues.Err("Invalid post"); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := repository.NewPostRepository(tx)
		post, err := posts.GetVisible(ctx, id, actor.UserID)
		if err != nil {
			return err
		}
		if post.AuthorID != actor.UserID {
			return models.NewUnauthorizedError("You can only edit your own posts")
		}

		if in.Title != nil {
			post.Title = *in.Title
		}
		if in.Content != nil {
			post.Content = *in.Content
		}
		if in.Published != nil {
			post.Published = *in.Published
		}
		switch {
		case in.ClearImage:
			post.ImageID = nil
		case in.ImageID != nil:
			if err := checkImage(ctx, repository.NewImageRepository(tx), *in.ImageID, actor.UserID); err != nil {
				return err
			}
			post.ImageID = in.ImageID
		}
		if err := posts.Update(ctx, post); err != nil {
			return err
		}

		if in.Tags != nil {
			tags, err := repository.NewTagRepository(tx).FindOrCreate(ctx, tagNames)
			if err != nil {
				return err
			}
			if err := posts.ReplaceTags(ctx, post, tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateTags(ctx)
	return s.posts.GetVisible(ctx, id, actor.UserID)
}

// Delete removes a post the actor can see and may mutate. Comments, votes and tag links
// cascade. The post's image goes too when the author owns it and no other post uses it;
// its stored object is removed after commit.
func (s *PostService) Delete(ctx context.Context, actor Actor, id uint) error {
	var orphanedPath string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := repository.NewPostRepository(tx)
		post, err := posts.GetVisible(ctx, id, actor.UserID)
		if err != nil {
			return err
		}
		if !CanMutate(post.AuthorID, actor.UserID, actor.IsAdmin) {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}

		var refs int64
		if post.ImageID != nil {
			if refs, err = posts.CountByImage(ctx, *post.ImageID); err != nil {
				return err
			}
		}

		if err := posts.Delete(ctx, post.ID); err != nil {
			return err
		}

		img := post.Image
		if img == nil || refs != 1 || img.OwnerID != post.AuthorID {
			return nil
		}
		if err := repository.NewImageRepository(tx).Delete(ctx, img.ID); err != nil {
			return err
		}
		orphanedPath = img.Path
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidateTags(ctx)
	if orphanedPath != "" {
		removeObject(ctx, s.storage, orphanedPath)
	}
	return nil
}

// ListComments returns the comments of a post visible to actor, oldest first.
func (s *PostService) ListComments(ctx context.Context, actor Actor, postID uint, page repository.Page) ([]models.Comment, error) {
	if _, err := s.posts.GetVisible(ctx, postID, actor.UserID); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID, page.Normalize())
}

// removeObject deletes a stored object. Failures are logged only.
func removeObject(ctx context.Context, store storage.ObjectStorage, path string) {
	if store == nil || path == "" {
		return
	}
	if err := store.Remove(ctx, path); err != nil {
		middleware.Logger.WarnContext(ctx, "Remove stored object failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
