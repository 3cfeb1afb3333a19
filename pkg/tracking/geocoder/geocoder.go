package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	gocachestore "github.com/eko/gocache/store/go_cache/v4"
	"github.com/navetta/navetta/pkg/model"
	"github.com/navetta/navetta/pkg/util"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const defaultEndpoint = "https://api.mapbox.com/geocoding/v5/mapbox.places"
const defaultLanguage = "pt-BR"
const requestTimeout = 10 * time.Second

// Client resolves coordinates to compact display addresses, memoising
// results per 4 decimal place grid cell. The cache lives for the life
// of the client and has no TTL; a single session's coordinate set is
// small.
type Client struct {
	endpoint    string
	accessToken string
	language    string

	httpClient *http.Client
	cache      *cache.Cache[string]
}

func NewClient() *Client {
	env := util.GetEnvironmentVariables()

	client := NewClientWithEndpoint(defaultEndpoint, env["NAVETTA_MAPBOX_ACCESS_TOKEN"])

	if env["NAVETTA_GEOCODER_LANGUAGE"] != "" {
		client.language = env["NAVETTA_GEOCODER_LANGUAGE"]
	}

	return client
}

func NewClientWithEndpoint(endpoint string, accessToken string) *Client {
	memoryStore := gocachestore.NewGoCache(gocache.New(gocache.NoExpiration, 0))

	return &Client{
		endpoint:    endpoint,
		accessToken: accessToken,
		language:    defaultLanguage,

		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache.New[string](memoryStore),
	}
}

type geocodeFeature struct {
	Text      string `json:"text"`
	Address   string `json:"address"`
	PlaceName string `json:"place_name"`
	Context   []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"context"`
}

type geocodeResponse struct {
	Features []geocodeFeature `json:"features"`
}

// Resolve returns the display address for the coordinates, or ok=false
// when geocoding yields nothing. A failed lookup is never an error from
// the caller's point of view; a capture proceeds without an address.
func (c *Client) Resolve(ctx context.Context, latitude float64, longitude float64) (string, bool) {
	key := model.Reading{Latitude: latitude, Longitude: longitude}.CacheKey()

	if address, err := c.cache.Get(ctx, key); err == nil {
		return address, true
	}

	feature, err := c.lookup(ctx, latitude, longitude)
	if err != nil {
		log.Debug().Err(err).Float64("lat", latitude).Float64("lon", longitude).Msg("Reverse geocode failed")
		return "", false
	}
	if feature == nil {
		return "", false
	}

	address := formatAddress(*feature)
	if address == "" {
		return "", false
	}

	if err := c.cache.Set(ctx, key, address); err != nil {
		log.Debug().Err(err).Msg("Failed to cache geocode result")
	}

	return address, true
}

// Clear empties the cache. Operator invoked memory pressure relief.
func (c *Client) Clear(ctx context.Context) {
	if err := c.cache.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clear geocode cache")
	}
}

func (c *Client) lookup(ctx context.Context, latitude float64, longitude float64) (*geocodeFeature, error) {
	query := url.Values{}
	query.Set("access_token", c.accessToken)
	query.Set("limit", "1")
	query.Set("language", c.language)
	query.Set("types", "address,poi")

	requestURL := fmt.Sprintf("%s/%f,%f.json?%s", c.endpoint, longitude, latitude, query.Encode())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding returned status %d", response.StatusCode)
	}

	var decoded geocodeResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	if len(decoded.Features) == 0 {
		return nil, nil
	}

	return &decoded.Features[0], nil
}

// formatAddress builds the compact display string: primary name with
// house number if present, then neighbourhood, then city.
func formatAddress(feature geocodeFeature) string {
	var parts []string

	primary := feature.Text
	if primary != "" && feature.Address != "" {
		primary = fmt.Sprintf("%s, %s", primary, feature.Address)
	}
	if primary == "" {
		primary = feature.PlaceName
	}
	if primary != "" {
		parts = append(parts, primary)
	}

	for _, entry := range feature.Context {
		if strings.HasPrefix(entry.ID, "neighborhood") || strings.HasPrefix(entry.ID, "place") {
			if entry.Text != "" {
				parts = append(parts, entry.Text)
			}
		}
	}

	return strings.Join(parts, " - ")
}
