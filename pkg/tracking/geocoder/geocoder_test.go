package geocoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, response geocodeResponse, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.URL.Query().Get("language"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestResolveCachesPerGridCell(t *testing.T) {
	var calls atomic.Int64

	server := newTestServer(t, geocodeResponse{
		Features: []geocodeFeature{
			{Text: "Avenida Conde da Boa Vista"},
		},
	}, &calls)

	client := NewClientWithEndpoint(server.URL, "test-token")

	address, ok := client.Resolve(context.Background(), -8.0476, -34.8813)
	require.True(t, ok)
	assert.Equal(t, "Avenida Conde da Boa Vista", address)
	assert.EqualValues(t, 1, calls.Load())

	// Same grid cell, no second remote call.
	cached, ok := client.Resolve(context.Background(), -8.04761, -34.88131)
	require.True(t, ok)
	assert.Equal(t, address, cached)
	assert.EqualValues(t, 1, calls.Load())

	// Different 4 decimal place key issues a new call.
	_, ok = client.Resolve(context.Background(), -8.0477, -34.8814)
	require.True(t, ok)
	assert.EqualValues(t, 2, calls.Load())
}

func TestResolveClear(t *testing.T) {
	var calls atomic.Int64

	server := newTestServer(t, geocodeResponse{
		Features: []geocodeFeature{{Text: "Rua da Aurora"}},
	}, &calls)

	client := NewClientWithEndpoint(server.URL, "test-token")

	_, ok := client.Resolve(context.Background(), -8.0600, -34.8790)
	require.True(t, ok)

	client.Clear(context.Background())

	_, ok = client.Resolve(context.Background(), -8.0600, -34.8790)
	require.True(t, ok)
	assert.EqualValues(t, 2, calls.Load())
}

func TestResolveNoMatch(t *testing.T) {
	var calls atomic.Int64

	server := newTestServer(t, geocodeResponse{}, &calls)

	client := NewClientWithEndpoint(server.URL, "test-token")

	address, ok := client.Resolve(context.Background(), 0.0001, 0.0001)
	assert.False(t, ok)
	assert.Empty(t, address)

	// A miss is not cached, a later attempt may succeed.
	client.Resolve(context.Background(), 0.0001, 0.0001)
	assert.EqualValues(t, 2, calls.Load())
}

func TestResolveRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClientWithEndpoint(server.URL, "test-token")

	// Failure degrades to no address, never an error.
	address, ok := client.Resolve(context.Background(), -8.0476, -34.8813)
	assert.False(t, ok)
	assert.Empty(t, address)
}

func TestFormatAddress(t *testing.T) {
	feature := geocodeFeature{
		Text:    "Avenida Boa Viagem",
		Address: "1906",
		Context: []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		}{
			{ID: "neighborhood.123", Text: "Boa Viagem"},
			{ID: "place.456", Text: "Recife"},
			{ID: "region.789", Text: "Pernambuco"},
		},
	}

	assert.Equal(t, "Avenida Boa Viagem, 1906 - Boa Viagem - Recife", formatAddress(feature))

	// Pieces are only present when available.
	assert.Equal(t, "Avenida Boa Viagem", formatAddress(geocodeFeature{Text: "Avenida Boa Viagem"}))
	assert.Equal(t, "Recife, Pernambuco", formatAddress(geocodeFeature{PlaceName: "Recife, Pernambuco"}))
	assert.Empty(t, formatAddress(geocodeFeature{}))
}
