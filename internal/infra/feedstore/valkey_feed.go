// Package feedstore keeps the capped meter reading streams in Valkey.
package feedstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/infra/keys"
)

const (
	// DefaultGlobalMaxLength caps the stream holding every site's readings.
	DefaultGlobalMaxLength = 10000
	// DefaultSiteMaxLength caps each site's stream, about one reading every
	// ten minutes over roughly 17 days.
	DefaultSiteMaxLength = 2440
)

// Options sets the approximate stream caps.
type Options struct {
	GlobalMaxLength int64
	SiteMaxLength   int64
}

// ValkeyFeed implements meter.Feed on two capped streams.
type ValkeyFeed struct {
	client valkey.Client
	keys   keys.Generator
	opts   Options
}

var _ meter.Feed = (*ValkeyFeed)(nil)

// New constructs the feed. Non-positive caps fall back to the defaults.
func New(client valkey.Client, gen keys.Generator, opts Options) *ValkeyFeed {
	if opts.GlobalMaxLength <= 0 {
		opts.GlobalMaxLength = DefaultGlobalMaxLength
	}
	if opts.SiteMaxLength <= 0 {
		opts.SiteMaxLength = DefaultSiteMaxLength
	}
	return &ValkeyFeed{client: client, keys: gen, opts: opts}
}

// Insert appends the reading to the global and the site stream in one round
// trip. The two appends are not atomic with each other.
func (f *ValkeyFeed) Insert(ctx context.Context, reading meter.MeterReading) error {
	fields := encodeReading(reading)
	cmds := valkey.Commands{
		f.xadd(f.keys.GlobalFeedKey(), f.opts.GlobalMaxLength, fields),
		f.xadd(f.keys.SiteFeedKey(reading.SiteID), f.opts.SiteMaxLength, fields),
	}
	for _, resp := range f.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("append meter reading for site %d: %w", reading.SiteID, err)
		}
	}
	return nil
}

// RecentGlobal returns up to limit readings across all sites, newest first.
func (f *ValkeyFeed) RecentGlobal(ctx context.Context, limit int) ([]meter.FeedEntry, error) {
	return f.recent(ctx, f.keys.GlobalFeedKey(), limit)
}

// RecentForSite returns up to limit readings of one site, newest first.
func (f *ValkeyFeed) RecentForSite(ctx context.Context, siteID int64, limit int) ([]meter.FeedEntry, error) {
	return f.recent(ctx, f.keys.SiteFeedKey(siteID), limit)
}

func (f *ValkeyFeed) xadd(key string, maxLen int64, fields [][2]string) valkey.Completed {
	cmd := f.client.B().Xadd().Key(key).Maxlen().Almost().Threshold(strconv.FormatInt(maxLen, 10)).Id("*").FieldValue()
	for _, kv := range fields {
		cmd = cmd.FieldValue(kv[0], kv[1])
	}
	return cmd.Build()
}

func (f *ValkeyFeed) recent(ctx context.Context, key string, limit int) ([]meter.FeedEntry, error) {
	if limit <= 0 {
		return []meter.FeedEntry{}, nil
	}
	cmd := f.client.B().Xrevrange().Key(key).End("+").Start("-").Count(int64(limit)).Build()
	entries, err := f.client.Do(ctx, cmd).AsXRange()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return []meter.FeedEntry{}, nil
		}
		return nil, fmt.Errorf("read stream %s: %w", key, err)
	}
	out := make([]meter.FeedEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, decodeEntry(entry.ID, entry.FieldValues))
	}
	return out, nil
}

// encodeReading flattens the known fields first, then the extras by name.
// Measurements the reading did not carry are not written.
func encodeReading(r meter.MeterReading) [][2]string {
	fields := [][2]string{
		{meter.FieldSiteID, strconv.FormatInt(r.SiteID, 10)},
		{meter.FieldDateTime, strconv.FormatInt(r.DateTime, 10)},
	}
	for _, m := range []struct {
		name  string
		value *float64
	}{
		{meter.FieldWhUsed, r.WhUsed},
		{meter.FieldWhGenerated, r.WhGenerated},
		{meter.FieldTempC, r.TempC},
	} {
		if m.value != nil {
			fields = append(fields, [2]string{m.name, formatFloat(*m.value)})
		}
	}
	names := make([]string, 0, len(r.Extra))
	for name := range r.Extra {
		if isKnownField(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, [2]string{name, r.Extra[name]})
	}
	return fields
}

// decodeEntry parses the known numeric fields back. A value that does not
// parse is kept verbatim in Extra rather than dropped.
func decodeEntry(id string, values map[string]string) meter.FeedEntry {
	entry := meter.FeedEntry{ID: id}
	for name, raw := range values {
		switch name {
		case meter.FieldSiteID:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				entry.SiteID = &n
				continue
			}
		case meter.FieldDateTime:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				entry.DateTime = &n
				continue
			}
		case meter.FieldWhUsed:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				entry.WhUsed = &v
				continue
			}
		case meter.FieldWhGenerated:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				entry.WhGenerated = &v
				continue
			}
		case meter.FieldTempC:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				entry.TempC = &v
				continue
			}
		}
		if entry.Extra == nil {
			entry.Extra = make(map[string]string)
		}
		entry.Extra[name] = raw
	}
	return entry
}

func isKnownField(name string) bool {
	switch name {
	case meter.FieldSiteID, meter.FieldDateTime, meter.FieldWhUsed, meter.FieldWhGenerated, meter.FieldTempC:
		return true
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
