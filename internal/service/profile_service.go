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

// ProfileService covers profiles and follows.
type ProfileService struct {
	profiles repository.ProfileRepository
	notify   *NotificationService
}

// UpdateProfileInput is a partial update; nil fields are left unchanged.
type UpdateProfileInput struct {
	Name *string
	Bio  *string
}

func NewProfileService(db *gorm.DB, notify *NotificationService) *ProfileService {
	return &ProfileService{
		profiles: repository.NewProfileRepository(db),
		notify:   notify,
	}
}

// viewerProfileID resolves the actor's profile for follow flags. Anonymous is zero.
func (s *ProfileService) viewerProfileID(ctx context.Context, actor Actor) uint {
	if !actor.Authenticated() {
		return 0
	}
	p, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return 0
	}
	return p.ID
}

func (s *ProfileService) List(ctx context.Context, actor Actor, query string, page repository.Page) ([]models.Profile, error) {
	return s.profiles.List(ctx, query, s.viewerProfileID(ctx, actor), page.Normalize())
}

func (s *ProfileService) Get(ctx context.Context, actor Actor, id uint) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id, s.viewerProfileID(ctx, actor))
}

// Mine returns the actor's own profile with counts.
func (s *ProfileService) Mine(ctx context.Context, actor Actor) (*models.Profile, error) {
	own, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.profiles.GetByID(ctx, own.ID, own.ID)
}

// UpdateOwn edits the actor's name and bio.
func (s *ProfileService) UpdateOwn(ctx context.Context, actor Actor, in UpdateProfileInput) (*models.Profile, error) {
	var issues validation.Issues
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
		issues.Required("name", trimmed)
		issues.MaxLen("name", trimmed, validation.ProfileNameMax)
	}
	if in.Bio != nil {
		issues.MaxLen("bio", *in.Bio, validation.BioMax)
	}
	if err := issues.Err("Invalid profile"); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		profile.Name = *in.Name
	}
	if in.Bio != nil {
		profile.Bio = *in.Bio
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return s.profiles.GetByID(ctx, profile.ID, profile.ID)
}

// Follow makes the actor follow targetID. Following twice is a no-op; only the first
// follow notifies the target.
func (s *ProfileService) Follow(ctx context.Context, actor Actor, targetID uint) (*models.Profile, error) {
	me, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if me.ID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself",
			models.FieldIssue{Field: "profile_id", Message: "cannot follow yourself"})
	}
	target, err := s.profiles.GetByID(ctx, targetID, me.ID)
	if err != nil {
		return nil, err
	}

	created, err := s.profiles.Follow(ctx, me.ID, target.ID)
	if err != nil {
		return nil, err
	}
	if created {
		s.notify.NotifyProfiles(ctx, []uint{target.ID}, me, Notice{
			Kind:   models.NotificationFollow,
			Header: fmt.Sprintf("%s started following you", me.Name),
			URL:    fmt.Sprintf("/profiles/%d", me.ID),
		})
	}
	return s.profiles.GetByID(ctx, target.ID, me.ID)
}

// Unfollow removes the edge if present.
func (s *ProfileService) Unfollow(ctx context.Context, actor Actor, targetID uint) (*models.Profile, error) {
	me, err := s.profiles.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	target, err := s.profiles.GetByID(ctx, targetID, me.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.Unfollow(ctx, me.ID, target.ID); err != nil {
		return nil, err
	}
	return s.profiles.GetByID(ctx, target.ID, me.ID)
}

func (s *ProfileService) Followers(ctx context.Context, actor Actor, profileID uint, page repository.Page) ([]models.Profile, error) {
	viewer := s.viewerProfileID(ctx, actor)
	if _, err := s.profiles.GetByID(ctx, profileID, viewer); err != nil {
		return nil, err
	}
	return s.profiles.Followers(ctx, profileID, viewer, page.Normalize())
}

func (s *ProfileService) Following(ctx context.Context, actor Actor, profileID uint, page repository.Page) ([]models.Profile, error) {
	viewer := s.viewerProfileID(ctx, actor)
	if _, err := s.profiles.GetByID(ctx, profileID, viewer); err != nil {
		return nil, err
	}
	return s.profiles.Following(ctx, profileID, viewer, page.Normalize())
}
