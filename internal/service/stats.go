package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/tubescribe/internal/model"
	"github.com/sakif/tubescribe/internal/repository"
)

// StatsService reports platform counts. Nothing is stored.
type StatsService struct {
	stats repository.StatsRepository
	now   func() time.Time
}

func NewStatsService(stats repository.StatsRepository) *StatsService {
	return &StatsService{stats: stats, now: time.Now}
}

// Stats counts as of now. "This month" starts at the first instant of the
// current calendar month in UTC.
func (s *StatsService) Stats(ctx context.Context) (*model.Stats, error) {
	now := s.now().UTC()
	st, err := s.stats.Stats(ctx, now, MonthStart(now))
	if err != nil {
		return nil, fmt.Errorf("service/stats: %w", err)
	}
	return st, nil
}

// MonthStart truncates t to midnight on the first of its UTC month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
