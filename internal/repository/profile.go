package repository

import (
	"context"
	"strings"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository covers profiles and the follow graph between them.
type ProfileRepository interface {
	GetByID(ctx context.Context, id, viewerProfileID uint) (*models.Profile, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	List(ctx context.Context, query string, viewerProfileID uint, page Page) ([]models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	ListByIDs(ctx context.Context, ids []uint) ([]models.Profile, error)
	MissingIDs(ctx context.Context, ids []uint) ([]uint, error)
	Follow(ctx context.Context, followerID, followingID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID uint) (bool, error)
	Followers(ctx context.Context, profileID, viewerProfileID uint, page Page) ([]models.Profile, error)
	Following(ctx context.Context, profileID, viewerProfileID uint, page Page) ([]models.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// applyProfileDetails adds follower counts and whether the viewer follows each profile.
func applyProfileDetails(db *gorm.DB, viewerProfileID uint) *gorm.DB {
	selectQuery := "profiles.*, " +
		"(SELECT COUNT(*) FROM follows WHERE follows.following_id = profiles.id) AS followers_count, " +
		"(SELECT COUNT(*) FROM follows WHERE follows.follower_id = profiles.id) AS following_count"

	if viewerProfileID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM follows WHERE follows.follower_id = ? AND follows.following_id = profiles.id) AS following", viewerProfileID)
	}
	return db.Select(selectQuery + ", false AS following")
}

func (r *profileRepository) GetByID(ctx context.Context, id, viewerProfileID uint) (*models.Profile, error) {
	var profile models.Profile
	err := applyProfileDetails(r.db.WithContext(ctx).Model(&models.Profile{}), viewerProfileID).
		Where("profiles.id = ?", id).
		First(&profile).Error
	if err != nil {
		return nil, readError(err, "Profile", id)
	}
	return &profile, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, readError(err, "Profile", nil)
	}
	return &profile, nil
}

func (r *profileRepository) List(ctx context.Context, query string, viewerProfileID uint, page Page) ([]models.Profile, error) {
	var profiles []models.Profile
	db := applyProfileDetails(r.db.WithContext(ctx).Model(&models.Profile{}), viewerProfileID)
	if q := strings.TrimSpace(query); q != "" {
		db = db.Where("LOWER(profiles.name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if err := page.apply(db).Order("profiles.id ASC").Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	err := r.db.WithContext(ctx).
		Model(profile).
		Select("name", "bio").
		Updates(profile).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListByIDs returns the profiles that exist among ids, ordered by id.
func (r *profileRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

// MissingIDs returns the ids that do not resolve to a profile, in input order.
func (r *profileRepository) MissingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	existing := make(map[uint]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Follow adds the edge and reports whether it was new.
func (r *profileRepository) Follow(ctx context.Context, followerID, followingID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowingID: followingID})
	if result.Error != nil {
		return false, writeError(result.Error, "profile_id")
	}
	return result.RowsAffected > 0, nil
}

// Unfollow removes the edge and reports whether it existed.
func (r *profileRepository) Unfollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *profileRepository) Followers(ctx context.Context, profileID, viewerProfileID uint, page Page) ([]models.Profile, error) {
	return r.edgeList(ctx, "follows.follower_id", "follows.following_id", profileID, viewerProfileID, page)
}

func (r *profileRepository) Following(ctx context.Context, profileID, viewerProfileID uint, page Page) ([]models.Profile, error) {
	return r.edgeList(ctx, "follows.following_id", "follows.follower_id", profileID, viewerProfileID, page)
}

func (r *profileRepository) edgeList(ctx context.Context, joinCol, filterCol string, profileID, viewerProfileID uint, page Page) ([]models.Profile, error) {
	var profiles []models.Profile
	db := applyProfileDetails(r.db.WithContext(ctx).Model(&models.Profile{}), viewerProfileID).
		Joins("JOIN follows ON "+joinCol+" = profiles.id").
		Where(filterCol+" = ?", profileID)
	if err := page.apply(db).Order("follows.created_at DESC").Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}
