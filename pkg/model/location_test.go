package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/liip/sheriff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingCacheKey(t *testing.T) {
	first := Reading{Latitude: -8.0476, Longitude: -34.8813}
	second := Reading{Latitude: -8.0477, Longitude: -34.8814}

	assert.Equal(t, "-8.0476_-34.8813", first.CacheKey())
	assert.NotEqual(t, first.CacheKey(), second.CacheKey())

	// Coordinates inside the same ~11m grid cell share a key.
	nearby := Reading{Latitude: -8.04761, Longitude: -34.88131}
	assert.Equal(t, first.CacheKey(), nearby.CacheKey())
}

func TestReadingValid(t *testing.T) {
	assert.True(t, Reading{Latitude: -8.0476, Longitude: -34.8813}.Valid())
	assert.True(t, Reading{Latitude: 0, Longitude: 0}.Valid())

	assert.False(t, Reading{Latitude: math.NaN(), Longitude: -34.8813}.Valid())
	assert.False(t, Reading{Latitude: -8.0476, Longitude: math.NaN()}.Valid())
	assert.False(t, Reading{Latitude: 90.5, Longitude: 0}.Valid())
	assert.False(t, Reading{Latitude: 0, Longitude: -180.01}.Valid())
}

func TestNewLocationRecord(t *testing.T) {
	address := "Avenida Boa Viagem - Boa Viagem - Recife"
	speed := 8.2

	location := ResolvedLocation{
		Reading: Reading{
			Latitude:  -8.1289,
			Longitude: -34.9010,
			SpeedMps:  &speed,
		},
		Address: &address,
	}

	record := NewLocationRecord("driver-1", "trip-9", location, RecordMetadata{UserAgent: "test", Online: true})

	assert.Equal(t, "driver-1", record.DriverID)
	assert.Equal(t, "trip-9", record.TripID)
	assert.Equal(t, location.Latitude, record.Latitude)
	assert.Equal(t, location.Longitude, record.Longitude)
	assert.Equal(t, &address, record.Address)
	assert.Equal(t, &speed, record.SpeedMps)
	assert.True(t, record.Metadata.Online)

	// Trip association is optional, the record shape is uniform.
	untripped := NewLocationRecord("driver-1", "", location, RecordMetadata{})
	assert.Empty(t, untripped.TripID)
}

// The API serves records through sheriff with the basic and detailed
// groups, so the internal write-time metadata never reaches clients.
func TestLocationRecordExternalGroups(t *testing.T) {
	address := "Avenida Boa Viagem - Boa Viagem - Recife"
	location := ResolvedLocation{
		Reading: Reading{Latitude: -8.1289, Longitude: -34.9010, CapturedAt: time.Now()},
		Address: &address,
	}

	record := NewLocationRecord("driver-1", "trip-9", location, RecordMetadata{UserAgent: "test", Online: true})

	reduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic", "detailed"},
	}, record)
	require.NoError(t, err)

	encoded, err := json.Marshal(reduced)
	require.NoError(t, err)

	fields := map[string]any{}
	require.NoError(t, json.Unmarshal(encoded, &fields))

	assert.Contains(t, fields, "driver_id")
	assert.Contains(t, fields, "trip_id")
	assert.Contains(t, fields, "latitude")
	assert.Contains(t, fields, "longitude")
	assert.Contains(t, fields, "captured_at")
	assert.NotContains(t, fields, "metadata")
	assert.NotContains(t, fields, "user_agent")
}
