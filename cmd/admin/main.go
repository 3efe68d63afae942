// Package main provides admin management utilities for Inkwell.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"
	"inkwell/internal/storage"

	"gorm.io/gorm"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  admin promote <username>   - Promote user to admin")
	fmt.Println("  admin demote <username>    - Demote user from admin")
	fmt.Println("  admin list-admins          - List all admins")
	fmt.Println("  admin purge                - Purge non-admin content now")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	middleware.InitLogger(cfg.Env, os.Stderr)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := service.NewUserService(db, nil)

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		user, err := users.SetAdminByUsername(ctx, os.Args[2], command == "promote")
		if err != nil {
			log.Fatalf("Failed to %s %s: %v", command, os.Args[2], err)
		}
		fmt.Printf("%s (ID: %d) admin=%t\n", user.Username, user.ID, user.IsAdmin)

	case "list-admins":
		listAdmins(ctx, db)

	case "purge":
		purge(ctx, cfg, db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func listAdmins(ctx context.Context, db *gorm.DB) {
	var admins []models.User
	if err := db.WithContext(ctx).Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Since: %s\n", admin.ID, admin.Username, admin.CreatedAt.Format("2006-01-02"))
	}
}

func purge(ctx context.Context, cfg *config.Config, db *gorm.DB) {
	store, err := storage.NewLocalStorage(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	purger := service.NewPurgeService(db, store, featureflags.NewManager(cfg.FeatureFlags), cfg.PurgeEvery())
	report, err := purger.Force(ctx)
	if err != nil {
		log.Fatalf("Purge failed: %v", err)
	}
	fmt.Printf("Purged %d users, %d chats, %d tags and %d stored objects\n",
		report.Users, report.Chats, report.Tags, report.Objects)

	if _, next, err := purger.Schedule(ctx); err == nil && next != nil {
		fmt.Printf("Next scheduled purge: %s\n", next.Format("2006-01-02 15:04 MST"))
	}
}
