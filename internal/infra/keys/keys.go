// Package keys derives the namespaced store keys used by every adapter.
package keys

import (
	"strconv"
	"strings"

	"github.com/yanqian/redisolar/pkg/util"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "redisolar"

// Generator builds keys under a fixed prefix. The prefix is captured at
// construction so every key derived during a run shares it.
type Generator struct {
	prefix string
}

// New returns a generator for the given prefix, falling back to DefaultPrefix.
func New(prefix string) Generator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Generator{prefix: prefix}
}

// Prefix reports the namespace in use.
func (g Generator) Prefix() string {
	return g.prefix
}

// SiteHashKey is the hash holding one site's fields.
func (g Generator) SiteHashKey(siteID int64) string {
	return g.key("sites", "info", strconv.FormatInt(siteID, 10))
}

// SiteIDsKey is the set of every site hash key.
func (g Generator) SiteIDsKey() string {
	return g.key("sites", "ids")
}

// SiteGeoKey is the geospatial index over site hash keys.
func (g Generator) SiteGeoKey() string {
	return g.key("sites", "geo")
}

// CapacityRankingKey is the externally maintained capacity sorted set.
func (g Generator) CapacityRankingKey() string {
	return g.key("sites", "capacity", "ranking")
}

// GlobalFeedKey is the stream of every meter reading.
func (g Generator) GlobalFeedKey() string {
	return g.key("sites", "feed")
}

// SiteFeedKey is the stream of one site's meter readings.
func (g Generator) SiteFeedKey(siteID int64) string {
	return g.key("sites", "feed", strconv.FormatInt(siteID, 10))
}

// SiteStatsKey is the rollup hash for the UTC day containing ts.
func (g Generator) SiteStatsKey(siteID int64, ts int64) string {
	return g.key("sites", "stats", util.DateString(ts), strconv.FormatInt(siteID, 10))
}

func (g Generator) key(parts ...string) string {
	return g.prefix + ":" + strings.Join(parts, ":")
}
