package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frenta/claimsearch/internal/claims"
)

// rawClaim mirrors the JSON shape the extraction prompt asks the model to
// return: one object per atomic claim.
type rawClaim struct {
	Claim          string `json:"claim"`
	ClaimType      string `json:"claim_type"`
	Domain         string `json:"domain"`
	RoomType       string `json:"room_type"`
	IsSpecific     bool   `json:"is_specific"`
	HasQuantifiers bool   `json:"has_quantifiers"`
	Negation       bool   `json:"negation"`
}

// stripFence removes a ```json ... ``` or ``` ... ``` code fence the model
// commonly wraps its JSON output in.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseClaimsJSON(raw string) ([]claims.Claim, error) {
	var parsed []rawClaim
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse claims response: %w", err)
	}
	out := make([]claims.Claim, 0, len(parsed))
	for _, r := range parsed {
		if r.Claim == "" {
			continue
		}
		ct := claims.ClaimType(r.ClaimType)
		dom := claims.Domain(r.Domain)
		if dom == "" {
			dom = claims.DefaultDomain(ct)
		}
		out = append(out, claims.Claim{
			Text:       r.Claim,
			ClaimType:  ct,
			Domain:     dom,
			RoomType:   r.RoomType,
			IsSpecific: r.IsSpecific,
			HasQuants:  r.HasQuantifiers,
			Negation:   r.Negation,
			Kind:       claims.KindBase,
			Weight:     1.0,
			Source:     claims.ClaimSource{Type: claims.SourceText},
		})
	}
	return out, nil
}

func parseStructuredPropertiesJSON(raw string) (StructuredProperties, error) {
	var parsed struct {
		RentPrice          *float64 `json:"rent_price"`
		AvailabilityDates  *struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"availability_dates"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return StructuredProperties{}, fmt.Errorf("parse structured properties: %w", err)
	}
	out := StructuredProperties{RentPrice: parsed.RentPrice}
	if parsed.AvailabilityDates != nil {
		if t, err := time.Parse("2006-01-02", parsed.AvailabilityDates.Start); err == nil {
			out.AvailabilityStart = &t
		}
		if parsed.AvailabilityDates.End != "" {
			if t, err := time.Parse("2006-01-02", parsed.AvailabilityDates.End); err == nil {
				out.AvailabilityEnd = &t
			}
		}
	}
	return out, nil
}

func parseStructuredFiltersJSON(raw string) (StructuredFilters, error) {
	var parsed struct {
		RentPrice *struct {
			Min *float64 `json:"min"`
			Max *float64 `json:"max"`
		} `json:"rent_price"`
		AvailabilityDates *struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"availability_dates"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return StructuredFilters{}, fmt.Errorf("parse structured filters: %w", err)
	}
	var out StructuredFilters
	if parsed.RentPrice != nil {
		out.RentPriceMin = parsed.RentPrice.Min
		out.RentPriceMax = parsed.RentPrice.Max
	}
	if parsed.AvailabilityDates != nil {
		if t, err := time.Parse("2006-01-02", parsed.AvailabilityDates.Start); err == nil {
			out.AvailabilityStart = &t
		}
		if parsed.AvailabilityDates.End != "" {
			if t, err := time.Parse("2006-01-02", parsed.AvailabilityDates.End); err == nil {
				out.AvailabilityEnd = &t
			}
		}
	}
	return out, nil
}

func parseCompatibilityJSON(raw string, want int) ([]Compatibility, error) {
	var parsed []string
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse compatibility response: %w", err)
	}
	out := make([]Compatibility, len(parsed))
	for i, v := range parsed {
		switch Compatibility(v) {
		case Compatible, Partial, Incompatible:
			out[i] = Compatibility(v)
		default:
			out[i] = Partial
		}
	}
	for len(out) < want {
		out = append(out, Partial)
	}
	return out, nil
}

func parseVariantsJSON(raw string) ([]string, error) {
	var parsed []string
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse variants response: %w", err)
	}
	return parsed, nil
}

func parseGroundedFieldsJSON(raw string) (GroundedFields, error) {
	var parsed struct {
		PlaceID             string  `json:"place_id"`
		PlaceName           string  `json:"place_name"`
		PlaceURI            string  `json:"place_uri"`
		Coordinates         *struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"coordinates"`
		ExactDistanceMeters *float64 `json:"exact_distance_meters"`
		WalkingTimeMinutes  *float64 `json:"walking_time_minutes"`
		PlaceType           string   `json:"place_type"`
		SupportingEvidence  string   `json:"supporting_evidence"`
		Confidence          float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return GroundedFields{}, fmt.Errorf("parse grounded fields: %w", err)
	}
	out := GroundedFields{
		PlaceID:             parsed.PlaceID,
		PlaceName:           parsed.PlaceName,
		PlaceURI:            parsed.PlaceURI,
		ExactDistanceMeters: parsed.ExactDistanceMeters,
		WalkingTimeMinutes:  parsed.WalkingTimeMinutes,
		PlaceType:           parsed.PlaceType,
		SupportingEvidence:  parsed.SupportingEvidence,
		Confidence:          parsed.Confidence,
	}
	if parsed.Coordinates != nil {
		out.Coordinates = &claims.LatLng{Lat: parsed.Coordinates.Lat, Lng: parsed.Coordinates.Lng}
	}
	return out, nil
}

func buildExtractionPrompt(text string, address string) string {
	prefix := ""
	if address != "" {
		prefix = "Address: " + address + "\n"
	}
	return prefix + `Extract atomic rental-listing claims from the following text. Return a JSON array
of objects: {claim, claim_type, domain, room_type, is_specific, has_quantifiers, negation}.
claim_type is one of: location, features, amenities, size, condition, pricing,
accessibility, policies, utilities, transport, neighborhood, restrictions.
domain is one of: neighborhood, apartment, room (required when room_type is set).
Text:
` + text
}
