package service

import (
	"context"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/repository"

	"gorm.io/gorm"
)

// StatsSummary is the payload of the statistics endpoint.
type StatsSummary struct {
	repository.StatsCounts
	LastPurgeAt *time.Time `json:"last_purge_at"`
	NextPurgeAt *time.Time `json:"next_purge_at"`
}

type StatsService struct {
	stats repository.StatsRepository
	purge *PurgeService
}

// NewStatsService returns a stats service. purge may be nil, leaving the purge times empty.
func NewStatsService(db *gorm.DB, purge *PurgeService) *StatsService {
	return &StatsService{stats: repository.NewStatsRepository(db), purge: purge}
}

func (s *StatsService) Summary(ctx context.Context) (*StatsSummary, error) {
	var summary StatsSummary
	err := cache.Aside(ctx, cache.FamilyStats, cache.StatsSummaryKey, &summary, cache.StatsTTL, func() error {
		counts, err := s.stats.Counts(ctx)
		if err != nil {
			return err
		}
		summary.StatsCounts = *counts
		if s.purge != nil {
			summary.LastPurgeAt, summary.NextPurgeAt, err = s.purge.Schedule(ctx)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
