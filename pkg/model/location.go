package model

import (
	"fmt"
	"math"
	"time"
)

// Reading is a single geolocation fix as produced by a position source.
// Immutable once created.
type Reading struct {
	Latitude       float64   `json:"latitude" groups:"basic"`
	Longitude      float64   `json:"longitude" groups:"basic"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty" groups:"detailed"`
	SpeedMps       *float64  `json:"speed_mps,omitempty" groups:"detailed"`
	HeadingDegrees *float64  `json:"heading_degrees,omitempty" groups:"detailed"`
	CapturedAt     time.Time `json:"captured_at" groups:"basic"`
}

// Valid reports whether the coordinates are usable. NaN and out of range
// values are rejected before they reach the store.
func (r Reading) Valid() bool {
	if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) {
		return false
	}
	if math.Abs(r.Latitude) > 90 || math.Abs(r.Longitude) > 180 {
		return false
	}

	return true
}

// CacheKey quantises the coordinates to a 4 decimal place grid cell
// (roughly 11 metres). Readings inside the same cell share a reverse
// geocoding result.
func (r Reading) CacheKey() string {
	return fmt.Sprintf("%.4f_%.4f", r.Latitude, r.Longitude)
}

// ResolvedLocation is a Reading plus its reverse geocoded address.
// Address is nil when geocoding failed or was skipped. This is the unit
// broadcast between tracker instances and the unit persisted.
type ResolvedLocation struct {
	Reading
	Address *string `json:"address,omitempty" groups:"basic"`
}
