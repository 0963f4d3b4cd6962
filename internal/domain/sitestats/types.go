package sitestats

import (
	"fmt"
	"strings"
)

// SiteStats is the rollup of one site's readings for one UTC day.
type SiteStats struct {
	LastReportingTime int64   `json:"lastReportingTime"`
	MeterReadingCount int64   `json:"meterReadingCount"`
	MaxWhGenerated    float64 `json:"maxWhGenerated"`
	MinWhGenerated    float64 `json:"minWhGenerated"`
	MaxCapacity       float64 `json:"maxCapacity"`
}

// Strategy selects how rollups are updated.
type Strategy string

const (
	// StrategyBasic issues one request per step. Safe only with a single writer.
	StrategyBasic Strategy = "basic"
	// StrategyImproved batches reads and writes but still compares on the client.
	StrategyImproved Strategy = "improved"
	// StrategyOptimized compares on the server inside one transaction.
	StrategyOptimized Strategy = "optimized"
)

// ParseStrategy resolves a strategy name; empty selects StrategyOptimized.
func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return StrategyOptimized, nil
	case StrategyBasic, StrategyImproved, StrategyOptimized:
		return s, nil
	default:
		return "", fmt.Errorf("unknown stats strategy %q", raw)
	}
}
