package sitestats

import (
	"context"

	"github.com/yanqian/redisolar/internal/domain/meter"
)

// Updater folds one reading into the rollup for its site and day.
type Updater interface {
	Update(ctx context.Context, reading meter.MeterReading) error
}

// Store reads and updates rollups.
type Store interface {
	Updater
	FindByID(ctx context.Context, siteID int64, ts int64) (SiteStats, bool, error)
}
