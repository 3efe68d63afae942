package service

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed finder_levels.yaml
var finderCatalog []byte

const (
	anonymousPlayer       = "anonymous"
	playerNameMax         = 64
	defaultLeaderboardLen = 10
)

type catalogFile struct {
	Levels []catalogLevel `yaml:"levels"`
}

type catalogLevel struct {
	Slug       string             `yaml:"slug"`
	Name       string             `yaml:"name"`
	ImageURL   string             `yaml:"image_url"`
	Width      int                `yaml:"width"`
	Height     int                `yaml:"height"`
	Characters []catalogCharacter `yaml:"characters"`
}

type catalogCharacter struct {
	Name   string `yaml:"name"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Radius int    `yaml:"radius"`
}

// ParseFinderCatalog decodes and checks a level catalog.
func ParseFinderCatalog(raw []byte) ([]models.FinderLevel, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode finder catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Levels))
	levels := make([]models.FinderLevel, 0, len(file.Levels))
	for _, l := range file.Levels {
		if l.Slug == "" || l.Width <= 0 || l.Height <= 0 {
			return nil, fmt.Errorf("finder level %q: slug and positive dimensions are required", l.Slug)
		}
		if _, dup := seen[l.Slug]; dup {
			return nil, fmt.Errorf("finder level %q: duplicate slug", l.Slug)
		}
		seen[l.Slug] = struct{}{}
		if len(l.Characters) == 0 {
			return nil, fmt.Errorf("finder level %q: no characters", l.Slug)
		}

		level := models.FinderLevel{
			Slug:     l.Slug,
			Name:     l.Name,
			ImageURL: l.ImageURL,
			Width:    l.Width,
			Height:   l.Height,
		}
		for _, c := range l.Characters {
			if c.Radius <= 0 || c.X < 0 || c.Y < 0 || c.X > l.Width || c.Y > l.Height {
				return nil, fmt.Errorf("finder level %q: character %q is out of bounds", l.Slug, c.Name)
			}
			level.Characters = append(level.Characters, models.FinderCharacter{
				Name: c.Name, X: c.X, Y: c.Y, Radius: c.Radius,
			})
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// GuessInput is a click at (X, Y) claiming CharacterID is there.
type GuessInput struct {
	CharacterID uint
	X           int
	Y           int
}

// GuessResult reports the outcome of a guess and the round afterwards.
type GuessResult struct {
	Hit       bool                    `json:"hit"`
	Character *models.FinderCharacter `json:"character,omitempty"`
	Remaining int                     `json:"remaining"`
	Round     *models.FinderRound     `json:"round"`
}

// FinderService runs the character-finder minigame.
type FinderService struct {
	db     *gorm.DB
	finder repository.FinderRepository
	users  repository.UserRepository
	now    func() time.Time
}

func NewFinderService(db *gorm.DB) *FinderService {
	return &FinderService{
		db:     db,
		finder: repository.NewFinderRepository(db),
		users:  repository.NewUserRepository(db),
		now:    time.Now,
	}
}

// Sync upserts the embedded catalog into the database.
func (s *FinderService) Sync(ctx context.Context) error {
	return s.SyncCatalog(ctx, finderCatalog)
}

// SyncCatalog upserts the levels in raw.
func (s *FinderService) SyncCatalog(ctx context.Context, raw []byte) error {
	levels, err := ParseFinderCatalog(raw)
	if err != nil {
		return err
	}
	for i := range levels {
		if err := s.finder.UpsertLevel(ctx, &levels[i]); err != nil {
			return fmt.Errorf("sync finder level %q: %w", levels[i].Slug, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "Finder catalog synced", slog.Int("levels", len(levels)))
	return nil
}

func (s *FinderService) ListLevels(ctx context.Context) ([]models.FinderLevel, error) {
	return s.finder.ListLevels(ctx)
}

func (s *FinderService) GetLevel(ctx context.Context, slug string) (*models.FinderLevel, error) {
	return s.finder.GetLevelBySlug(ctx, slug)
}

// StartRound opens a timed round. Signed-in players default to their username.
func (s *FinderService) StartRound(ctx context.Context, actor Actor, slug, playerName string) (*models.FinderRound, error) {
	playerName = strings.TrimSpace(playerName)
	var issues validation.Issues
	issues.MaxLen("player_name", playerName, playerNameMax)
	if err := issues.Err("Invalid round"); err != nil {
		return nil, err
	}

	level, err := s.finder.GetLevelBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	round := &models.FinderRound{
		ID:         uuid.NewString(),
		LevelID:    level.ID,
		PlayerName: playerName,
		StartedAt:  s.now().UTC(),
	}
	if actor.Authenticated() {
		round.UserID = actor.ID()
		if round.PlayerName == "" {
			if user, err := s.users.GetByID(ctx, actor.UserID); err == nil {
				round.PlayerName = user.Username
			}
		}
	}
	if round.PlayerName == "" {
		round.PlayerName = anonymousPlayer
	}

	if err := s.finder.CreateRound(ctx, round); err != nil {
		return nil, err
	}
	return round, nil
}

func (s *FinderService) GetRound(ctx context.Context, id string) (*models.FinderRound, error) {
	return s.finder.GetRound(ctx, id)
}

// Guess checks a click against a character. Hits are recorded once; the round finishes
// with a fixed duration when the last character is found.
func (s *FinderService) Guess(ctx context.Context, roundID string, in GuessInput) (*GuessResult, error) {
	var (
		result   GuessResult
		level    *models.FinderLevel
		finished bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		finder := repository.NewFinderRepository(tx)
		round, err := finder.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round.Finished() {
			return models.NewValidationError("Round already finished",
				models.FieldIssue{Field: "round_id", Message: "round is finished"})
		}
		if level, err = finder.GetLevelByID(ctx, round.LevelID); err != nil {
			return err
		}
		if in.X < 0 || in.Y < 0 || in.X > level.Width || in.Y > level.Height {
			return models.NewValidationError("Guess is outside the level",
				models.FieldIssue{Field: "x", Message: "must lie within the level"})
		}

		var target *models.FinderCharacter
		for i := range level.Characters {
			if level.Characters[i].ID == in.CharacterID {
				target = &level.Characters[i]
				break
			}
		}
		if target == nil {
			return models.NewInvalidReferenceError("character_id", nil)
		}

		now := s.now().UTC()
		if within(target, in.X, in.Y) {
			result.Hit = true
			result.Character = target
			if _, err := finder.RecordFind(ctx, round.ID, target.ID, now); err != nil {
				return err
			}
		}

		if round, err = finder.GetRound(ctx, round.ID); err != nil {
			return err
		}
		result.Remaining = len(level.Characters) - len(round.Finds)
		if result.Remaining <= 0 {
			duration := now.Sub(round.StartedAt).Milliseconds()
			if finished, err = finder.FinishRound(ctx, round.ID, now, duration); err != nil {
				return err
			}
			if round, err = finder.GetRound(ctx, round.ID); err != nil {
				return err
			}
		}
		result.Round = round
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		cache.InvalidateLeaderboard(ctx, level.Slug)
		cache.InvalidateStats(ctx)
	}
	return &result, nil
}

func within(c *models.FinderCharacter, x, y int) bool {
	dx := x - c.X
	dy := y - c.Y
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// Leaderboard returns the fastest finished rounds of a level.
func (s *FinderService) Leaderboard(ctx context.Context, slug string, limit int) ([]models.FinderRound, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLen
	}
	limit = repository.Page{Limit: limit}.Normalize().Limit

	level, err := s.finder.GetLevelBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	var rounds []models.FinderRound
	err = cache.Aside(ctx, cache.FamilyLeaderboard, cache.FinderLeaderboardKey(level.Slug, limit), &rounds, cache.LeaderboardTTL, func() error {
		var err error
		rounds, err = s.finder.Leaderboard(ctx, level.ID, limit)
		return err
	})
	return rounds, err
}
