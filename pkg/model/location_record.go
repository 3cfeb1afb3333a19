package model

import "time"

// RecordMetadata captures the client environment at write time.
type RecordMetadata struct {
	UserAgent string `json:"user_agent"`
	Online    bool   `json:"online"`
}

// LocationRecord is the persisted form of a capture. Records are append
// only; nothing in this module updates or deletes one after insert.
type LocationRecord struct {
	DriverID string `json:"driver_id" groups:"basic"`
	TripID   string `json:"trip_id,omitempty" groups:"basic" bson:",omitempty"`

	Latitude  float64 `json:"latitude" groups:"basic"`
	Longitude float64 `json:"longitude" groups:"basic"`
	Address   *string `json:"address,omitempty" groups:"basic" bson:",omitempty"`

	AccuracyMeters *float64 `json:"accuracy_meters,omitempty" groups:"detailed" bson:",omitempty"`
	SpeedMps       *float64 `json:"speed_mps,omitempty" groups:"detailed" bson:",omitempty"`
	HeadingDegrees *float64 `json:"heading_degrees,omitempty" groups:"detailed" bson:",omitempty"`

	CapturedAt time.Time `json:"captured_at" groups:"basic"`

	Metadata RecordMetadata `json:"metadata" groups:"internal"`
}

// NewLocationRecord builds the persisted record for a resolved capture.
// tripID may be empty when the session is not bound to a specific trip.
func NewLocationRecord(driverID string, tripID string, location ResolvedLocation, metadata RecordMetadata) LocationRecord {
	return LocationRecord{
		DriverID: driverID,
		TripID:   tripID,

		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		Address:   location.Address,

		AccuracyMeters: location.AccuracyMeters,
		SpeedMps:       location.SpeedMps,
		HeadingDegrees: location.HeadingDegrees,

		CapturedAt: location.CapturedAt,

		Metadata: metadata,
	}
}
