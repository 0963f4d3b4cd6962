package statsstore

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/infra/keys"
)

// Basic issues every step as its own request. Each ratchet reads the stored
// value and writes back when the reading beats it, so two writers for the same
// site and day can overwrite each other's extremes.
type Basic struct {
	client valkey.Client
	keys   keys.Generator
	now    func() time.Time

	// afterRead runs between a ratchet's read and its write. Tests use it to
	// interleave a competing writer.
	afterRead func()
}

// NewBasic builds the sequential strategy.
func NewBasic(client valkey.Client, gen keys.Generator, now func() time.Time) *Basic {
	return &Basic{client: client, keys: gen, now: now}
}

// Update folds the reading into its daily rollup.
func (b *Basic) Update(ctx context.Context, reading meter.MeterReading) error {
	key := b.keys.SiteStatsKey(reading.SiteID, reading.DateTime)
	for _, cmd := range unconditional(b.client.B(), key, b.now()) {
		if err := b.client.Do(ctx, cmd).Error(); err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
	}
	for _, r := range ratchetsFor(reading) {
		if err := b.apply(ctx, key, r); err != nil {
			return err
		}
	}
	return nil
}

func (b *Basic) apply(ctx context.Context, key string, r ratchet) error {
	current, err := b.client.Do(ctx, b.client.B().Hget().Key(key).Field(r.field).Build()).AsFloat64()
	absent := valkey.IsValkeyNil(err)
	if err != nil && !absent {
		return fmt.Errorf("read %s %s: %w", key, r.field, err)
	}
	if b.afterRead != nil {
		b.afterRead()
	}
	if !absent && !r.wins(current) {
		return nil
	}
	if err := b.client.Do(ctx, hsetFloat(b.client.B(), key, r.field, r.value)).Error(); err != nil {
		return fmt.Errorf("write %s %s: %w", key, r.field, err)
	}
	return nil
}
