package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurgeResult counts rows removed by one purge.
type PurgeResult struct {
	Users int64
	Chats int64
	Tags  int64
	// Paths are the storage paths of the deleted images. Their objects still exist.
	Paths []string
}

// PurgeRepository owns the purge watermark and the bulk delete of non-admin data.
type PurgeRepository interface {
	Watermark(ctx context.Context) (*models.PurgeWatermark, error)
	EnsureWatermark(ctx context.Context, now time.Time) (*models.PurgeWatermark, error)
	Claim(ctx context.Context, seenVersion int64, now time.Time) (bool, error)
	PurgeNonAdmins(ctx context.Context) (*PurgeResult, error)
}

type purgeRepository struct {
	db *gorm.DB
}

// NewPurgeRepository creates a new purge repository
func NewPurgeRepository(db *gorm.DB) PurgeRepository {
	return &purgeRepository{db: db}
}

// Watermark returns nil, nil before the first purge check ever ran.
func (r *purgeRepository) Watermark(ctx context.Context) (*models.PurgeWatermark, error) {
	var wm models.PurgeWatermark
	err := r.db.WithContext(ctx).Where("id = ?", models.PurgeWatermarkID).First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &wm, nil
}

// EnsureWatermark creates the row stamped with now if it is missing and returns the stored row.
func (r *purgeRepository) EnsureWatermark(ctx context.Context, now time.Time) (*models.PurgeWatermark, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PurgeWatermark{ID: models.PurgeWatermarkID, LastPurgedAt: now}).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	wm, err := r.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	if wm == nil {
		return nil, models.NewInternalError(errors.New("purge watermark missing after insert"))
	}
	return wm, nil
}

// Claim advances the watermark if nobody else moved it since seenVersion was read.
func (r *purgeRepository) Claim(ctx context.Context, seenVersion int64, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PurgeWatermark{}).
		Where("id = ? AND version = ?", models.PurgeWatermarkID, seenVersion).
		Updates(map[string]interface{}{
			"last_purged_at": now,
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// PurgeNonAdmins deletes every non-admin user in one transaction and lets the schema cascade
// the rest, then drops chats left without participants and tags left without posts. Stored
// objects are left to the caller, which removes them once the transaction has committed.
func (r *purgeRepository) PurgeNonAdmins(ctx context.Context) (*PurgeResult, error) {
	defer observability.TrackQuery("purge", "users")()

	var out PurgeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paths, err := NewImageRepository(tx).PathsByNonAdmins(ctx)
		if err != nil {
			return err
		}
		out.Paths = paths

		if err := tx.Exec(
			"DELETE FROM post_tags WHERE post_id IN (SELECT posts.id FROM posts JOIN users ON users.id = posts.author_id WHERE users.is_admin = ?)",
			false,
		).Error; err != nil {
			return err
		}

		result := tx.Where("is_admin = ?", false).Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		out.Users = result.RowsAffected

		chats, err := NewChatRepository(tx).DeleteEmpty(ctx)
		if err != nil {
			return err
		}
		out.Chats = chats

		tags, err := NewTagRepository(tx).DeleteOrphans(ctx)
		if err != nil {
			return err
		}
		out.Tags = tags
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &out, nil
}
