package seed

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Users           int
	Posts           int
	CommentsPerPost int
	// Clean removes existing content before seeding. Finder levels survive.
	Clean bool
	// MaxDays bounds how far back post timestamps are spread.
	MaxDays int
	// RandomSeed makes a run reproducible when non-zero.
	RandomSeed int64
	// BcryptCost overrides bcrypt.DefaultCost for the shared demo password.
	BcryptCost int
}

// Report counts what a Seed run created.
type Report struct {
	Users    int
	Posts    int
	Comments int
	Votes    int
	Follows  int
}

// cleanOrder lists content tables children first.
var cleanOrder = []interface{}{
	&models.Notification{},
	&models.Message{},
	&models.ChatManager{},
	&models.ChatParticipant{},
	&models.Chat{},
	&models.Vote{},
	&models.Comment{},
	"post_tags",
	&models.Post{},
	&models.Tag{},
	&models.Image{},
	&models.Follow{},
	&models.FinderRound{},
	&models.Profile{},
	&models.User{},
}

// Seed populates the database with demo users and content.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Report, error) {
	if opts.Users < 1 {
		return nil, fmt.Errorf("seed: at least one user is required")
	}
	middleware.Logger.InfoContext(ctx, "Seeding database",
		slog.Int("users", opts.Users),
		slog.Int("posts", opts.Posts),
	)

	db = db.WithContext(ctx)
	if opts.Clean {
		if err := Clean(db); err != nil {
			return nil, err
		}
	}

	f := NewFactory(db, opts)
	report := &Report{}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(i)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	report.Users = len(users)

	for _, u := range users {
		for _, idx := range f.r.Perm(len(users))[:f.r.Intn(min(len(users), 6))] {
			target := users[idx]
			if target.ID == u.ID {
				continue
			}
			if err := f.Follow(u, target); err != nil {
				return nil, fmt.Errorf("failed to create follow: %w", err)
			}
			report.Follows++
		}
	}

	for i := 0; i < opts.Posts; i++ {
		author := users[f.r.Intn(len(users))]
		post, err := f.CreatePost(author)
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		report.Posts++

		if !post.Published {
			continue
		}
		for c := 0; c < f.r.Intn(opts.CommentsPerPost+1); c++ {
			if _, err := f.CreateComment(users[f.r.Intn(len(users))], post); err != nil {
				return nil, fmt.Errorf("failed to create comment: %w", err)
			}
			report.Comments++
		}
		for _, idx := range f.r.Perm(len(users))[:f.r.Intn(len(users)+1)] {
			if err := f.Vote(users[idx], post); err != nil {
				return nil, fmt.Errorf("failed to create vote: %w", err)
			}
			report.Votes++
		}
	}

	middleware.Logger.InfoContext(ctx, "Seeding complete",
		slog.Int("users", report.Users),
		slog.Int("posts", report.Posts),
		slog.Int("comments", report.Comments),
		slog.Int("votes", report.Votes),
		slog.Int("follows", report.Follows),
	)
	return report, nil
}

// Clean deletes all content rows. The purge watermark and the finder catalog are kept.
func Clean(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, target := range cleanOrder {
			var err error
			if table, ok := target.(string); ok {
				err = all.Exec("DELETE FROM " + table).Error
			} else {
				err = all.Delete(target).Error
			}
			if err != nil {
				return fmt.Errorf("seed: clean %v: %w", target, err)
			}
		}
		return nil
	})
}
