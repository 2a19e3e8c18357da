package geocode

import (
	"context"
	"testing"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/resilience"
)

func TestNormalizeAddressLowercasesAndTrims(t *testing.T) {
	got := normalizeAddress("  123 Main St, Springfield  ")
	want := "123 main st, springfield"
	if got != want {
		t.Errorf("normalizeAddress() = %q, want %q", got, want)
	}
}

func TestGeocodeRejectsEmptyAddress(t *testing.T) {
	c := NewGoogleClient(GoogleConfig{}, resilience.NewManager(observability.NewNoopLogger()))
	_, err := c.Geocode(context.Background(), "   ")
	if apperrors.ClassOf(err) != apperrors.ClassInvalid {
		t.Fatalf("expected ClassInvalid for empty address, got %v (err=%v)", apperrors.ClassOf(err), err)
	}
}

func TestGeocodeReturnsCachedPointWithoutCallingProvider(t *testing.T) {
	c := NewGoogleClient(GoogleConfig{}, resilience.NewManager(observability.NewNoopLogger()))
	want := claims.LatLng{Lat: 37.7749, Lng: -122.4194}
	c.cacheStore.Set(normalizeAddress("1 Market St, San Francisco"), want)

	got, err := c.Geocode(context.Background(), "1 Market St, San Francisco")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if got != want {
		t.Errorf("Geocode() = %+v, want %+v", got, want)
	}
}
