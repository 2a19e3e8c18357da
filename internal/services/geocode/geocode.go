// Package geocode implements the geocoding façade (spec §4.8 step 4):
// resolving an address string to a coordinate, cached for 90 days keyed by
// lowercased trimmed address.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/cache"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/resilience"
)

const cacheTTL = 90 * 24 * time.Hour

// Client resolves an address to a coordinate.
type Client interface {
	Geocode(ctx context.Context, address string) (claims.LatLng, error)
}

// GoogleConfig configures the Google Maps Geocoding API client.
type GoogleConfig struct {
	APIKey string
}

// GoogleClient implements Client against the Google Maps Geocoding API,
// with an in-process TTL cache (spec §3's "keyed by lowercased trimmed
// address" rule) and a circuit breaker.
type GoogleClient struct {
	cfg        GoogleConfig
	httpClient *http.Client
	breakers   *resilience.Manager
	cacheStore *cache.TTLCache[string, claims.LatLng]
}

// NewGoogleClient constructs a GoogleClient.
func NewGoogleClient(cfg GoogleConfig, breakers *resilience.Manager) *GoogleClient {
	return &GoogleClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breakers:   breakers,
		cacheStore: cache.NewTTLCache[string, claims.LatLng](4096, cacheTTL),
	}
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (c *GoogleClient) Geocode(ctx context.Context, address string) (claims.LatLng, error) {
	key := normalizeAddress(address)
	if key == "" {
		return claims.LatLng{}, apperrors.Invalid("address is empty")
	}
	if cached, ok := c.cacheStore.Get(key); ok {
		return cached, nil
	}

	v, err := c.breakers.Execute(ctx, resilience.BreakerGeocode, resilience.CircuitBreakerConfig{}, func() (interface{}, error) {
		return c.doGeocode(ctx, address)
	})
	if err != nil {
		return claims.LatLng{}, apperrors.Transient(err, "geocode call failed for %q", address)
	}
	point := v.(claims.LatLng)
	c.cacheStore.Set(key, point)
	return point, nil
}

func (c *GoogleClient) doGeocode(ctx context.Context, address string) (claims.LatLng, error) {
	endpoint := "https://maps.googleapis.com/maps/api/geocode/json?address=" +
		url.QueryEscape(address) + "&key=" + c.cfg.APIKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return claims.LatLng{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return claims.LatLng{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return claims.LatLng{}, fmt.Errorf("geocode API returned %d", resp.StatusCode)
	}

	var parsed struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return claims.LatLng{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return claims.LatLng{}, fmt.Errorf("no geocode result for address (status %s)", parsed.Status)
	}

	loc := parsed.Results[0].Geometry.Location
	point := claims.LatLng{Lat: loc.Lat, Lng: loc.Lng}
	if !point.Valid() {
		return claims.LatLng{}, fmt.Errorf("geocoded point out of bounds: %+v", point)
	}
	return point, nil
}
