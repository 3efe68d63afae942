// Command main fills the Inkwell database with demo users and posts.
package main

import (
	"flag"
	"log"
	"os"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	comments := flag.Int("comments", 4, "Maximum comments per published post")
	maxDays := flag.Int("days", 90, "Spread post timestamps over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randomSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env, os.Stdout)

	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{
		SyncFinder: true,
		Demo: &seed.Options{
			Users:           *numUsers,
			Posts:           *numPosts,
			CommentsPerPost: *comments,
			Clean:           *shouldClean,
			MaxDays:         *maxDays,
			RandomSeed:      *randomSeed,
		},
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Printf("All demo users have the password: %s", seed.DemoPassword)
}
