package repository

import (
	"context"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FinderRepository persists character-finder levels and rounds.
type FinderRepository interface {
	UpsertLevel(ctx context.Context, level *models.FinderLevel) error
	ListLevels(ctx context.Context) ([]models.FinderLevel, error)
	GetLevelBySlug(ctx context.Context, slug string) (*models.FinderLevel, error)
	GetLevelByID(ctx context.Context, id uint) (*models.FinderLevel, error)
	CreateRound(ctx context.Context, round *models.FinderRound) error
	GetRound(ctx context.Context, id string) (*models.FinderRound, error)
	RecordFind(ctx context.Context, roundID string, characterID uint, at time.Time) (bool, error)
	FinishRound(ctx context.Context, roundID string, finishedAt time.Time, durationMs int64) (bool, error)
	Leaderboard(ctx context.Context, levelID uint, limit int) ([]models.FinderRound, error)
}

type finderRepository struct {
	db *gorm.DB
}

// NewFinderRepository creates a new finder repository
func NewFinderRepository(db *gorm.DB) FinderRepository {
	return &finderRepository{db: db}
}

// UpsertLevel creates or refreshes the level by slug and its characters by (level, name).
// Characters missing from level.Characters are left in place.
func (r *finderRepository) UpsertLevel(ctx context.Context, level *models.FinderLevel) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.FinderLevel{
			Slug:     level.Slug,
			Name:     level.Name,
			ImageURL: level.ImageURL,
			Width:    level.Width,
			Height:   level.Height,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image_url", "width", "height"}),
		}).Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}

		var stored models.FinderLevel
		if err := tx.Where("slug = ?", level.Slug).First(&stored).Error; err != nil {
			return err
		}
		level.ID = stored.ID

		for i := range level.Characters {
			ch := models.FinderCharacter{
				LevelID: stored.ID,
				Name:    level.Characters[i].Name,
				X:       level.Characters[i].X,
				Y:       level.Characters[i].Y,
				Radius:  level.Characters[i].Radius,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "level_id"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"x", "y", "radius"}),
			}).Create(&ch).Error; err != nil {
				return err
			}
			level.Characters[i].LevelID = stored.ID
		}
		return nil
	})
}

func (r *finderRepository) ListLevels(ctx context.Context) ([]models.FinderLevel, error) {
	var levels []models.FinderLevel
	err := r.db.WithContext(ctx).
		Preload("Characters", func(db *gorm.DB) *gorm.DB {
			return db.Order("finder_characters.id ASC")
		}).
		Order("slug ASC").
		Find(&levels).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return levels, nil
}

func (r *finderRepository) GetLevelBySlug(ctx context.Context, slug string) (*models.FinderLevel, error) {
	return r.getLevel(ctx, "slug = ?", slug)
}

func (r *finderRepository) GetLevelByID(ctx context.Context, id uint) (*models.FinderLevel, error) {
	return r.getLevel(ctx, "id = ?", id)
}

func (r *finderRepository) getLevel(ctx context.Context, cond string, arg interface{}) (*models.FinderLevel, error) {
	var level models.FinderLevel
	err := r.db.WithContext(ctx).
		Preload("Characters", func(db *gorm.DB) *gorm.DB {
			return db.Order("finder_characters.id ASC")
		}).
		Where(cond, arg).
		First(&level).Error
	if err != nil {
		return nil, readError(err, "Level", nil)
	}
	return &level, nil
}

func (r *finderRepository) CreateRound(ctx context.Context, round *models.FinderRound) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(round).Error; err != nil {
		return writeError(err, "level_id")
	}
	return nil
}

func (r *finderRepository) GetRound(ctx context.Context, id string) (*models.FinderRound, error) {
	var round models.FinderRound
	if err := r.db.WithContext(ctx).Preload("Finds").Where("id = ?", id).First(&round).Error; err != nil {
		return nil, readError(err, "Round", nil)
	}
	return &round, nil
}

// RecordFind stores the find once and reports whether it was new.
func (r *finderRepository) RecordFind(ctx context.Context, roundID string, characterID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FinderFind{RoundID: roundID, CharacterID: characterID, FoundAt: at})
	if result.Error != nil {
		return false, writeError(result.Error, "character_id")
	}
	return result.RowsAffected > 0, nil
}

// FinishRound stamps the round unless it already finished and reports whether it did.
func (r *finderRepository) FinishRound(ctx context.Context, roundID string, finishedAt time.Time, durationMs int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FinderRound{}).
		Where("id = ? AND finished_at IS NULL", roundID).
		Updates(map[string]interface{}{"finished_at": finishedAt, "duration_ms": durationMs})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Leaderboard returns the fastest finished rounds of a level.
func (r *finderRepository) Leaderboard(ctx context.Context, levelID uint, limit int) ([]models.FinderRound, error) {
	var rounds []models.FinderRound
	err := r.db.WithContext(ctx).
		Where("level_id = ? AND finished_at IS NOT NULL", levelID).
		Order("duration_ms ASC").
		Order("finished_at ASC").
		Limit(Page{Limit: limit}.Normalize().Limit).
		Find(&rounds).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rounds, nil
}
