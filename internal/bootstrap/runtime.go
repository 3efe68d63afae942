// Package bootstrap wires the process-wide runtime: database, Redis, the configured admin
// account and the built-in finder catalog.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/seed"
	"inkwell/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SyncFinder loads the embedded finder catalog into the database.
	SyncFinder bool
	// Demo, when set, seeds demo users and posts after the schema is ready.
	Demo *seed.Options
}

// InitRuntime connects to DB and Redis, runs the optional catalog and demo seeding steps and
// ensures the configured admin exists. The admin is ensured last so a cleaning seed cannot
// remove it. The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	ctx := context.Background()
	if opts.SyncFinder {
		if err := service.NewFinderService(db).Sync(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to sync finder catalog: %w", err)
		}
	}

	if opts.Demo != nil {
		if _, err := seed.Seed(ctx, db, *opts.Demo); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		cache.InvalidateAll(ctx)
	}

	if err := ensureAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	return db, r, nil
}

func ensureAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	username := strings.TrimSpace(cfg.AdminUsername)
	if username == "" || cfg.AdminPassword == "" {
		return nil
	}

	user, created, err := service.NewUserService(db, nil).EnsureAdmin(ctx, username, cfg.AdminPassword)
	if err != nil {
		return err
	}
	middleware.Logger.Info("admin account ensured",
		slog.String("username", user.Username),
		slog.Bool("created", created),
	)
	return nil
}
