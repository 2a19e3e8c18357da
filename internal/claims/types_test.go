package claims

import "testing"

func TestLatLngValid(t *testing.T) {
	cases := []struct {
		name string
		p    LatLng
		want bool
	}{
		{"center", LatLng{Lat: 0, Lng: 0}, true},
		{"nyc", LatLng{Lat: 40.7128, Lng: -74.0060}, true},
		{"lat too high", LatLng{Lat: 91, Lng: 0}, false},
		{"lat too low", LatLng{Lat: -91, Lng: 0}, false},
		{"lng too high", LatLng{Lat: 0, Lng: 181}, false},
		{"lng too low", LatLng{Lat: 0, Lng: -181}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.p.Valid(); got != c.want {
				t.Errorf("Valid() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestDocIDs(t *testing.T) {
	if got := CanonicalClaimDocID("A1"); got != "A1_claim_0" {
		t.Errorf("CanonicalClaimDocID = %q", got)
	}
	if got := RoomDocID("A1", 3); got != "A1_room_3" {
		t.Errorf("RoomDocID = %q", got)
	}
	if got := NeighborhoodClaimDocID("", 2); got != "unknown_claim_2" {
		t.Errorf("NeighborhoodClaimDocID = %q", got)
	}
}

func TestDefaultDomain(t *testing.T) {
	cases := map[ClaimType]Domain{
		TypeLocation:     DomainNeighborhood,
		TypeTransport:    DomainNeighborhood,
		TypeNeighborhood: DomainNeighborhood,
		TypePolicies:     DomainApartment,
		TypePricing:      DomainApartment,
		TypeUtilities:    DomainApartment,
		TypeRestrictions: DomainApartment,
		TypeSize:         DomainRoom,
		TypeFeatures:     DomainRoom,
	}
	for ct, want := range cases {
		if got := DefaultDomain(ct); got != want {
			t.Errorf("DefaultDomain(%s) = %s, want %s", ct, got, want)
		}
	}
}

func TestExpansionEligible(t *testing.T) {
	for _, ct := range []ClaimType{TypeRestrictions, TypePolicies, TypeNeighborhood} {
		if !ExpansionEligible(ct) {
			t.Errorf("ExpansionEligible(%s) = false, want true", ct)
		}
	}
	for _, ct := range []ClaimType{TypeLocation, TypePricing, TypeSize} {
		if ExpansionEligible(ct) {
			t.Errorf("ExpansionEligible(%s) = true, want false", ct)
		}
	}
}
