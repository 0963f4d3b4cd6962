package sitestats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/yanqian/redisolar/pkg/errors"
	"github.com/yanqian/redisolar/pkg/util"
)

// Service serves daily rollups.
type Service interface {
	Get(ctx context.Context, siteID int64, ts int64) (SiteStats, error)
}

type service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the stats domain.
func NewService(store Store, logger *slog.Logger) Service {
	return &service{
		store:  store,
		logger: logger.With("component", "sitestats.service"),
		now:    util.NowUTC,
	}
}

// Get returns the rollup for the day containing ts, or today when ts is zero.
func (s *service) Get(ctx context.Context, siteID int64, ts int64) (SiteStats, error) {
	if siteID <= 0 {
		return SiteStats{}, apperrors.Invalid("siteId must be positive")
	}
	if ts < 0 {
		return SiteStats{}, apperrors.Invalid("timestamp cannot be negative")
	}
	if ts == 0 {
		ts = s.now().Unix()
	}
	stats, ok, err := s.store.FindByID(ctx, siteID, ts)
	if err != nil {
		return SiteStats{}, apperrors.Wrap(apperrors.CodeStoreError, "site stats lookup failed", err)
	}
	if !ok {
		return SiteStats{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("no stats for site %d on %s", siteID, util.DateString(ts)), nil)
	}
	return stats, nil
}
