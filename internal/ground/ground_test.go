package ground

import (
	"testing"

	"github.com/frenta/claimsearch/internal/claims"
)

func TestShouldGround(t *testing.T) {
	svc := New(Config{Enabled: true}, nil, nil)

	cases := []struct {
		name string
		c    claims.Claim
		want bool
	}{
		{
			"eligible location claim",
			claims.Claim{Domain: claims.DomainNeighborhood, IsSpecific: true, ClaimType: claims.TypeLocation},
			true,
		},
		{
			"room domain excluded",
			claims.Claim{Domain: claims.DomainRoom, IsSpecific: true, ClaimType: claims.TypeLocation},
			false,
		},
		{
			"not specific excluded",
			claims.Claim{Domain: claims.DomainApartment, IsSpecific: false, ClaimType: claims.TypeTransport},
			false,
		},
		{
			"wrong claim type excluded",
			claims.Claim{Domain: claims.DomainApartment, IsSpecific: true, ClaimType: claims.TypePricing},
			false,
		},
		{
			"amenities eligible",
			claims.Claim{Domain: claims.DomainApartment, IsSpecific: true, ClaimType: claims.TypeAmenities},
			true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := svc.ShouldGround(c.c); got != c.want {
				t.Errorf("ShouldGround() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestShouldGroundDisabledGlobally(t *testing.T) {
	svc := New(Config{Enabled: false}, nil, nil)
	c := claims.Claim{Domain: claims.DomainNeighborhood, IsSpecific: true, ClaimType: claims.TypeLocation}
	if svc.ShouldGround(c) {
		t.Errorf("expected ShouldGround to be false when grounding disabled")
	}
}

func TestRecommendedRadius(t *testing.T) {
	cases := []struct {
		placeType string
		wantNil   bool
	}{
		{"station", false},
		{"park", false},
		{"neighborhood", false},
		{"borough", false},
		{"", true},
		{"restaurant", true},
	}
	for _, c := range cases {
		got := recommendedRadius(c.placeType)
		if (got == nil) != c.wantNil {
			t.Errorf("recommendedRadius(%q) nil=%v, want nil=%v", c.placeType, got == nil, c.wantNil)
		}
	}
}
