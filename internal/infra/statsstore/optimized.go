package statsstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/infra/keys"
	"github.com/yanqian/redisolar/internal/infra/script"
)

// errAbortedNoScript marks a transaction the server refused because a queued
// script invocation was unknown.
var errAbortedNoScript = errors.New("transaction aborted: script not loaded")

// Optimized applies the whole update in one MULTI/EXEC with the ratchets run
// by the compare-and-update script, so concurrent writers never lose updates.
type Optimized struct {
	client valkey.Client
	keys   keys.Generator
	script *script.CompareAndUpdate
	now    func() time.Time
}

// NewOptimized builds the transactional strategy.
func NewOptimized(client valkey.Client, gen keys.Generator, cas *script.CompareAndUpdate, now func() time.Time) *Optimized {
	return &Optimized{client: client, keys: gen, script: cas, now: now}
}

// Update folds the reading into its daily rollup. If the server lost the
// script, it is loaded again once: an aborted transaction is replayed whole,
// otherwise only the ratchets that failed are sent again.
func (o *Optimized) Update(ctx context.Context, reading meter.MeterReading) error {
	key := o.keys.SiteStatsKey(reading.SiteID, reading.DateTime)
	ratchets := ratchetsFor(reading)

	sha, err := o.script.SHA(ctx)
	if err != nil {
		return err
	}
	failed, err := o.exec(ctx, key, sha, ratchets)
	if errors.Is(err, errAbortedNoScript) {
		if err := o.script.Reload(ctx); err != nil {
			return err
		}
		failed, err = o.exec(ctx, key, sha, ratchets)
		if errors.Is(err, errAbortedNoScript) {
			return fmt.Errorf("update %s: %w", key, err)
		}
	}
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		return nil
	}

	if err := o.script.Reload(ctx); err != nil {
		return err
	}
	cmds := make(valkey.Commands, 0, len(failed))
	for _, r := range failed {
		cmds = append(cmds, o.script.Command(sha, key, r.field, r.value, r.cmp))
	}
	for _, resp := range o.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("replay ratchet on %s: %w", key, err)
		}
	}
	return nil
}

// exec runs one transaction and returns the ratchets that failed with
// NOSCRIPT inside it.
func (o *Optimized) exec(ctx context.Context, key, sha string, ratchets []ratchet) ([]ratchet, error) {
	var failed []ratchet
	err := o.client.Dedicated(func(c valkey.DedicatedClient) error {
		body := unconditional(c.B(), key, o.now())
		fixed := len(body)
		for _, r := range ratchets {
			body = append(body, o.script.Command(sha, key, r.field, r.value, r.cmp))
		}
		cmds := make(valkey.Commands, 0, len(body)+2)
		cmds = append(cmds, c.B().Multi().Build())
		cmds = append(cmds, body...)
		cmds = append(cmds, c.B().Exec().Build())

		resps := c.DoMulti(ctx, cmds...)
		if err := resps[0].Error(); err != nil {
			return fmt.Errorf("begin transaction on %s: %w", key, err)
		}
		queuedNoScript := false
		for _, resp := range resps[1 : len(resps)-1] {
			if script.IsNoScript(resp.Error()) {
				queuedNoScript = true
			}
		}
		replies, err := resps[len(resps)-1].ToArray()
		if err != nil {
			if queuedNoScript {
				return errAbortedNoScript
			}
			return fmt.Errorf("commit transaction on %s: %w", key, err)
		}
		for i, reply := range replies {
			err := reply.Error()
			if err == nil {
				continue
			}
			if i >= fixed && script.IsNoScript(err) {
				failed = append(failed, ratchets[i-fixed])
				continue
			}
			return fmt.Errorf("transaction on %s: %w", key, err)
		}
		return nil
	})
	return failed, err
}
