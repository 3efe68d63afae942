package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// StatsCounts are row counts across the schema.
type StatsCounts struct {
	Users          int64 `json:"users"`
	Admins         int64 `json:"admins"`
	Profiles       int64 `json:"profiles"`
	Posts          int64 `json:"posts"`
	PublishedPosts int64 `json:"published_posts"`
	Comments       int64 `json:"comments"`
	Votes          int64 `json:"votes"`
	Tags           int64 `json:"tags"`
	Images         int64 `json:"images"`
	Chats          int64 `json:"chats"`
	Messages       int64 `json:"messages"`
	FinderRounds   int64 `json:"finder_rounds"`
}

// StatsRepository aggregates usage counts.
type StatsRepository interface {
	Counts(ctx context.Context) (*StatsCounts, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Counts(ctx context.Context) (*StatsCounts, error) {
	defer observability.TrackQuery("count", "all")()

	var out StatsCounts
	queries := []struct {
		dest  *int64
		model interface{}
		where []interface{}
	}{
		{&out.Users, &models.User{}, nil},
		{&out.Admins, &models.User{}, []interface{}{"is_admin = ?", true}},
		{&out.Profiles, &models.Profile{}, nil},
		{&out.Posts, &models.Post{}, nil},
		{&out.PublishedPosts, &models.Post{}, []interface{}{"published = ?", true}},
		{&out.Comments, &models.Comment{}, nil},
		{&out.Votes, &models.Vote{}, nil},
		{&out.Tags, &models.Tag{}, nil},
		{&out.Images, &models.Image{}, nil},
		{&out.Chats, &models.Chat{}, nil},
		{&out.Messages, &models.Message{}, nil},
		{&out.FinderRounds, &models.FinderRound{}, nil},
	}

	for _, q := range queries {
		db := r.db.WithContext(ctx).Model(q.model)
		if len(q.where) > 0 {
			db = db.Where(q.where[0], q.where[1:]...)
		}
		if err := db.Count(q.dest).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return &out, nil
}
