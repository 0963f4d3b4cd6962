// Package statsstore maintains the per-site daily rollups in Valkey.
package statsstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/domain/sitestats"
	"github.com/yanqian/redisolar/internal/infra/keys"
	"github.com/yanqian/redisolar/internal/infra/script"
	"github.com/yanqian/redisolar/pkg/util"
)

// Rollup hash fields.
const (
	FieldLastReportingTime = "lastReportingTime"
	FieldMeterReadingCount = "meterReadingCount"
	FieldMaxWhGenerated    = "maxWhGenerated"
	FieldMinWhGenerated    = "minWhGenerated"
	FieldMaxCapacity       = "maxCapacity"
)

// TTLSeconds is how long a rollup outlives its last write.
const TTLSeconds = 7 * 24 * 60 * 60

// Store reads rollups and updates them with the configured strategy.
type Store struct {
	sitestats.Updater
	client   valkey.Client
	keys     keys.Generator
	strategy sitestats.Strategy
}

var _ sitestats.Store = (*Store)(nil)

// New builds the store around one update strategy. A nil clock uses UTC now.
func New(client valkey.Client, gen keys.Generator, cas *script.CompareAndUpdate, strategy sitestats.Strategy, now func() time.Time) (*Store, error) {
	if now == nil {
		now = util.NowUTC
	}
	var updater sitestats.Updater
	switch strategy {
	case sitestats.StrategyBasic:
		updater = NewBasic(client, gen, now)
	case sitestats.StrategyImproved:
		updater = NewImproved(client, gen, now)
	case sitestats.StrategyOptimized, "":
		strategy = sitestats.StrategyOptimized
		updater = NewOptimized(client, gen, cas, now)
	default:
		return nil, fmt.Errorf("unknown stats strategy %q", strategy)
	}
	return &Store{Updater: updater, client: client, keys: gen, strategy: strategy}, nil
}

// Strategy reports the update strategy in use.
func (s *Store) Strategy() sitestats.Strategy {
	return s.strategy
}

// FindByID returns the rollup of the UTC day containing ts, or false when it
// was never written or has expired.
func (s *Store) FindByID(ctx context.Context, siteID int64, ts int64) (sitestats.SiteStats, bool, error) {
	key := s.keys.SiteStatsKey(siteID, ts)
	values, err := s.client.Do(ctx, s.client.B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return sitestats.SiteStats{}, false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(values) == 0 {
		return sitestats.SiteStats{}, false, nil
	}
	return decodeStats(values), true, nil
}

func decodeStats(values map[string]string) sitestats.SiteStats {
	var out sitestats.SiteStats
	out.LastReportingTime, _ = strconv.ParseInt(values[FieldLastReportingTime], 10, 64)
	out.MeterReadingCount, _ = strconv.ParseInt(values[FieldMeterReadingCount], 10, 64)
	out.MaxWhGenerated, _ = strconv.ParseFloat(values[FieldMaxWhGenerated], 64)
	out.MinWhGenerated, _ = strconv.ParseFloat(values[FieldMinWhGenerated], 64)
	out.MaxCapacity, _ = strconv.ParseFloat(values[FieldMaxCapacity], 64)
	return out
}

// ratchet is one conditional field update derived from a reading.
type ratchet struct {
	field string
	value float64
	cmp   script.Comparator
}

func (r ratchet) wins(current float64) bool {
	if r.cmp == script.Less {
		return r.value < current
	}
	return r.value > current
}

// ratchetsFor skips every extreme whose input the reading did not carry, so a
// missing measurement never lowers a minimum to zero.
func ratchetsFor(reading meter.MeterReading) []ratchet {
	out := make([]ratchet, 0, 3)
	if wh := reading.WhGenerated; wh != nil {
		out = append(out,
			ratchet{field: FieldMaxWhGenerated, value: *wh, cmp: script.Greater},
			ratchet{field: FieldMinWhGenerated, value: *wh, cmp: script.Less},
		)
	}
	if capacity, ok := reading.Capacity(); ok {
		out = append(out, ratchet{field: FieldMaxCapacity, value: capacity, cmp: script.Greater})
	}
	return out
}

// unconditional returns the writes every reading performs.
func unconditional(b valkey.Builder, key string, now time.Time) valkey.Commands {
	return valkey.Commands{
		b.Hset().Key(key).FieldValue().FieldValue(FieldLastReportingTime, strconv.FormatInt(now.Unix(), 10)).Build(),
		b.Hincrby().Key(key).Field(FieldMeterReadingCount).Increment(1).Build(),
		b.Expire().Key(key).Seconds(TTLSeconds).Build(),
	}
}

func hsetFloat(b valkey.Builder, key, field string, value float64) valkey.Completed {
	return b.Hset().Key(key).FieldValue().FieldValue(field, formatFloat(value)).Build()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
