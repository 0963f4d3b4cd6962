package meter

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/yanqian/redisolar/pkg/errors"
	"github.com/yanqian/redisolar/pkg/metrics"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Service ingests meter readings and serves the recent feeds.
type Service interface {
	Submit(ctx context.Context, readings []MeterReading) error
	Recent(ctx context.Context, limit int) ([]FeedEntry, error)
	RecentForSite(ctx context.Context, siteID int64, limit int) ([]FeedEntry, error)
}

type service struct {
	cfg     Config
	feed    Feed
	stats   StatsRecorder
	metrics *metrics.Collectors
	logger  *slog.Logger
}

// NewService wires the meter domain.
func NewService(cfg Config, feed Feed, stats StatsRecorder, collectors *metrics.Collectors, logger *slog.Logger) Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = maxLimit
	}
	return &service{
		cfg:     cfg,
		feed:    feed,
		stats:   stats,
		metrics: collectors,
		logger:  logger.With("component", "meter.service"),
	}
}

func (s *service) Submit(ctx context.Context, readings []MeterReading) error {
	if len(readings) == 0 {
		return apperrors.Invalid("at least one reading is required")
	}
	for i, reading := range readings {
		if err := reading.Validate(); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("reading %d is invalid", i), err)
		}
	}
	for _, reading := range readings {
		if err := s.ingest(ctx, reading); err != nil {
			return apperrors.Wrap(apperrors.CodeStoreError, "ingest meter reading failed", err)
		}
	}
	return nil
}

// ingest writes the reading to the feed and the rollup independently. A
// failure in one sink does not cancel the other.
func (s *service) ingest(ctx context.Context, reading MeterReading) error {
	var g errgroup.Group
	g.Go(func() error {
		err := s.feed.Insert(ctx, reading)
		s.metrics.ObserveIngest(metrics.SinkFeed, err)
		if err != nil {
			s.logger.Error("feed insert failed", "siteId", reading.SiteID, "error", err)
		}
		return err
	})
	g.Go(func() error {
		err := s.stats.Update(ctx, reading)
		s.metrics.ObserveIngest(metrics.SinkStats, err)
		if err != nil {
			s.logger.Error("site stats update failed", "siteId", reading.SiteID, "error", err)
		}
		return err
	})
	return g.Wait()
}

func (s *service) Recent(ctx context.Context, limit int) ([]FeedEntry, error) {
	entries, err := s.feed.RecentGlobal(ctx, s.clamp(limit))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "global feed lookup failed", err)
	}
	return entries, nil
}

func (s *service) RecentForSite(ctx context.Context, siteID int64, limit int) ([]FeedEntry, error) {
	if siteID <= 0 {
		return nil, apperrors.Invalid("siteId must be positive")
	}
	entries, err := s.feed.RecentForSite(ctx, siteID, s.clamp(limit))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "site feed lookup failed", err)
	}
	return entries, nil
}

func (s *service) clamp(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}
