package site

import (
	"fmt"
	"strings"
)

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Site is a solar installation reporting meter readings.
type Site struct {
	ID         int64       `json:"id"`
	Capacity   float64     `json:"capacity"`
	Panels     int64       `json:"panels"`
	Address    string      `json:"address"`
	City       string      `json:"city"`
	State      string      `json:"state"`
	PostalCode string      `json:"postalCode"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// DistanceUnit is a radius unit understood by the geo index.
type DistanceUnit string

const (
	UnitMeters     DistanceUnit = "m"
	UnitKilometers DistanceUnit = "km"
	UnitMiles      DistanceUnit = "mi"
	UnitFeet       DistanceUnit = "ft"
)

// ParseUnit resolves a unit name case-insensitively.
func ParseUnit(raw string) (DistanceUnit, error) {
	switch unit := DistanceUnit(strings.ToLower(strings.TrimSpace(raw))); unit {
	case UnitMeters, UnitKilometers, UnitMiles, UnitFeet:
		return unit, nil
	default:
		return "", fmt.Errorf("unsupported radius unit %q", raw)
	}
}

// GeoQuery describes a radius search around a point.
type GeoQuery struct {
	Lat                float64
	Lng                float64
	Radius             float64
	Unit               DistanceUnit
	OnlyExcessCapacity bool
}

// CapacityThreshold is the minimum capacity ranking score of a site with
// excess capacity.
const CapacityThreshold = 0.2
