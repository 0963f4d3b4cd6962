package statsstore

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/infra/keys"
)

// Improved reads the three ratchet fields in one request and sends every write
// in one pipelined batch. The comparison still happens here, so concurrent
// writers can lose updates exactly like Basic.
type Improved struct {
	client valkey.Client
	keys   keys.Generator
	now    func() time.Time

	afterRead func()
}

// NewImproved builds the batched strategy.
func NewImproved(client valkey.Client, gen keys.Generator, now func() time.Time) *Improved {
	return &Improved{client: client, keys: gen, now: now}
}

// Update folds the reading into its daily rollup.
func (s *Improved) Update(ctx context.Context, reading meter.MeterReading) error {
	key := s.keys.SiteStatsKey(reading.SiteID, reading.DateTime)
	ratchets := ratchetsFor(reading)
	if len(ratchets) == 0 {
		return s.exec(ctx, key, unconditional(s.client.B(), key, s.now()))
	}

	fields := make([]string, 0, len(ratchets))
	for _, r := range ratchets {
		fields = append(fields, r.field)
	}
	stored, err := s.client.Do(ctx, s.client.B().Hmget().Key(key).Field(fields...).Build()).ToArray()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if len(stored) != len(ratchets) {
		return fmt.Errorf("read %s: expected %d values, got %d", key, len(ratchets), len(stored))
	}
	if s.afterRead != nil {
		s.afterRead()
	}

	cmds := unconditional(s.client.B(), key, s.now())
	for i, r := range ratchets {
		if !stored[i].IsNil() {
			current, err := stored[i].AsFloat64()
			if err != nil {
				return fmt.Errorf("parse %s %s: %w", key, r.field, err)
			}
			if !r.wins(current) {
				continue
			}
		}
		cmds = append(cmds, hsetFloat(s.client.B(), key, r.field, r.value))
	}
	return s.exec(ctx, key, cmds)
}

func (s *Improved) exec(ctx context.Context, key string, cmds valkey.Commands) error {
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
	}
	return nil
}
