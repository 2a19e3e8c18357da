package llm

import "testing"

func TestParseClaimsJSONFillsDefaultDomain(t *testing.T) {
	raw := "```json\n" + `[{"claim":"has a dishwasher","claim_type":"amenities","is_specific":true}]` + "\n```"
	out, err := parseClaimsJSON(raw)
	if err != nil {
		t.Fatalf("parseClaimsJSON: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(out))
	}
	if out[0].Domain == "" {
		t.Error("expected default domain to be filled in when model omits it")
	}
}

func TestParseClaimsJSONSkipsEmptyClaimText(t *testing.T) {
	raw := `[{"claim":"","claim_type":"amenities"},{"claim":"pet friendly","claim_type":"policies"}]`
	out, err := parseClaimsJSON(raw)
	if err != nil {
		t.Fatalf("parseClaimsJSON: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected empty-text claim to be skipped, got %d claims", len(out))
	}
}

func TestParseStructuredFiltersJSONParsesRentAndDates(t *testing.T) {
	raw := `{"rent_price":{"min":1500,"max":2500},"availability_dates":{"start":"2026-08-01","end":"2026-09-01"}}`
	out, err := parseStructuredFiltersJSON(raw)
	if err != nil {
		t.Fatalf("parseStructuredFiltersJSON: %v", err)
	}
	if out.RentPriceMin == nil || *out.RentPriceMin != 1500 {
		t.Errorf("expected min 1500, got %v", out.RentPriceMin)
	}
	if out.RentPriceMax == nil || *out.RentPriceMax != 2500 {
		t.Errorf("expected max 2500, got %v", out.RentPriceMax)
	}
	if out.AvailabilityStart == nil || out.AvailabilityEnd == nil {
		t.Fatal("expected both availability dates to parse")
	}
	if !out.HasRentFilter() || !out.HasAvailabilityFilter() {
		t.Error("expected both HasRentFilter and HasAvailabilityFilter to be true")
	}
}

func TestParseStructuredFiltersJSONEmptyHasNoFilters(t *testing.T) {
	out, err := parseStructuredFiltersJSON(`{}`)
	if err != nil {
		t.Fatalf("parseStructuredFiltersJSON: %v", err)
	}
	if out.HasRentFilter() || out.HasAvailabilityFilter() {
		t.Error("expected no filters when response has no rent_price or availability_dates")
	}
}

func TestParseCompatibilityJSONPadsShortResponsesWithPartial(t *testing.T) {
	out, err := parseCompatibilityJSON(`["compatible"]`, 3)
	if err != nil {
		t.Fatalf("parseCompatibilityJSON: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected padding to 3 entries, got %d", len(out))
	}
	if out[0] != Compatible {
		t.Errorf("expected first entry compatible, got %v", out[0])
	}
	if out[1] != Partial || out[2] != Partial {
		t.Error("expected padded entries to default to partial")
	}
}

func TestParseCompatibilityJSONDefaultsUnknownValueToPartial(t *testing.T) {
	out, err := parseCompatibilityJSON(`["nonsense"]`, 1)
	if err != nil {
		t.Fatalf("parseCompatibilityJSON: %v", err)
	}
	if out[0] != Partial {
		t.Errorf("expected unrecognized compatibility value to default to partial, got %v", out[0])
	}
}

func TestStripFenceRemovesJSONCodeFence(t *testing.T) {
	got := stripFence("```json\n[1,2,3]\n```")
	if got != "[1,2,3]" {
		t.Errorf("expected fence stripped, got %q", got)
	}
}
