package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	StatsSummaryKey         = "stats:summary"
	FinderLeaderboardPrefix = "finder:leaderboard:%s:%d"
	TagListKey              = "tags:list"
)

const (
	StatsTTL       = 30 * time.Second
	LeaderboardTTL = time.Minute
	TagListTTL     = 2 * time.Minute
)

// Key families used as metric labels.
const (
	FamilyStats       = "stats"
	FamilyLeaderboard = "leaderboard"
	FamilyTags        = "tags"
)

func FinderLeaderboardKey(slug string, limit int) string {
	return fmt.Sprintf(FinderLeaderboardPrefix, slug, limit)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidatePattern removes every key matching pattern. Used for leaderboard variants.
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	Invalidate(ctx, keys...)
}

func InvalidateStats(ctx context.Context) {
	Invalidate(ctx, StatsSummaryKey)
}

func InvalidateTags(ctx context.Context) {
	Invalidate(ctx, TagListKey)
}

func InvalidateLeaderboard(ctx context.Context, slug string) {
	InvalidatePattern(ctx, fmt.Sprintf("finder:leaderboard:%s:*", slug))
}

// InvalidateAll drops every key the application caches. Used after a purge.
func InvalidateAll(ctx context.Context) {
	Invalidate(ctx, StatsSummaryKey, TagListKey)
	InvalidatePattern(ctx, "finder:leaderboard:*")
}
