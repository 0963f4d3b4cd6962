package meter

import "context"

// Feed keeps the capped recent-history streams of readings.
type Feed interface {
	Insert(ctx context.Context, reading MeterReading) error
	RecentGlobal(ctx context.Context, limit int) ([]FeedEntry, error)
	RecentForSite(ctx context.Context, siteID int64, limit int) ([]FeedEntry, error)
}

// StatsRecorder folds a reading into the per-site daily rollup.
type StatsRecorder interface {
	Update(ctx context.Context, reading MeterReading) error
}
