package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// VisitorCounter is the subset of the Redis client the stats service needs.
type VisitorCounter interface {
	RecordVisit(ctx context.Context, day, clientAddr string) error
	GetVisitorDay(ctx context.Context, day string) (models.VisitorDay, error)
}

// StatsService reads the visitor counters kept in Redis
type StatsService struct {
	counter VisitorCounter
	days    int
	logger  *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(counter VisitorCounter, days int) *StatsService {
	return &StatsService{
		counter: counter,
		days:    days,
		logger:  util.GetLogger(),
	}
}

// DayKey formats a timestamp as the daily counter key suffix.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Record counts one request for today
func (s *StatsService) Record(ctx context.Context, clientAddr string) {
	if s.counter == nil {
		return
	}
	if err := s.counter.RecordVisit(ctx, DayKey(time.Now()), clientAddr); err != nil {
		s.logger.Warn("Failed to record visit", zap.Error(err))
	}
}

// Visitors returns daily hit and unique-visitor counts for the configured
// window, most recent day first.
func (s *StatsService) Visitors(ctx context.Context) ([]models.VisitorDay, error) {
	days := make([]models.VisitorDay, 0, s.days)
	now := time.Now()
	for i := 0; i < s.days; i++ {
		day, err := s.counter.GetVisitorDay(ctx, DayKey(now.AddDate(0, 0, -i)))
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}
