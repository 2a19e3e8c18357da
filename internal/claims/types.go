// Package claims defines the claim data model shared by the indexing and
// search pipelines: claim types, domains, kinds, quantifiers, sources, and
// grounding metadata.
package claims

import (
	"strconv"
	"time"
)

// Dimensions is the embedding vector width shared by every stored claim.
// A mismatch against this value is fatal (see services/embedding).
const Dimensions = 3072

// InfiniteBoundSentinel is the value an unbounded quantifier upper bound is
// serialized as, because the vector store rejects IEEE infinities.
const InfiniteBoundSentinel = 999_999_999

// ClaimType is the semantic category of a claim.
type ClaimType string

const (
	TypeLocation      ClaimType = "location"
	TypeFeatures      ClaimType = "features"
	TypeAmenities     ClaimType = "amenities"
	TypeSize          ClaimType = "size"
	TypeCondition     ClaimType = "condition"
	TypePricing       ClaimType = "pricing"
	TypeAccessibility ClaimType = "accessibility"
	TypePolicies      ClaimType = "policies"
	TypeUtilities     ClaimType = "utilities"
	TypeTransport     ClaimType = "transport"
	TypeNeighborhood  ClaimType = "neighborhood"
	TypeRestrictions  ClaimType = "restrictions"
)

// AllClaimTypes lists every ClaimType in the taxonomy.
var AllClaimTypes = []ClaimType{
	TypeLocation, TypeFeatures, TypeAmenities, TypeSize, TypeCondition,
	TypePricing, TypeAccessibility, TypePolicies, TypeUtilities,
	TypeTransport, TypeNeighborhood, TypeRestrictions,
}

// Domain is the structural scope a claim belongs to, and the index it is
// persisted into.
type Domain string

const (
	DomainNeighborhood Domain = "neighborhood"
	DomainApartment    Domain = "apartment"
	DomainRoom         Domain = "room"
)

// Kind is the provenance/semantics tag on a claim.
type Kind string

const (
	KindBase     Kind = "base"
	KindDerived  Kind = "derived"
	KindAnti     Kind = "anti"
	KindVerified Kind = "verified"
)

// QuantifierType is the kind of numeric predicate a quantifier expresses.
type QuantifierType string

const (
	QuantMoney    QuantifierType = "money"
	QuantArea     QuantifierType = "area"
	QuantCount    QuantifierType = "count"
	QuantDistance QuantifierType = "distance"
	QuantDuration QuantifierType = "duration"
)

// QuantifierOp is the comparison operator a quantifier expresses.
type QuantifierOp string

const (
	OpEquals QuantifierOp = "EQUALS"
	OpGT     QuantifierOp = "GT"
	OpGTE    QuantifierOp = "GTE"
	OpLT     QuantifierOp = "LT"
	OpLTE    QuantifierOp = "LTE"
	OpApprox QuantifierOp = "APPROX"
	OpRange  QuantifierOp = "RANGE"
)

// Quantifier is a typed numeric predicate attached to a claim.
//
// An unbounded upper bound is held as VMax = InfiniteBoundSentinel both in
// memory and in the store; nothing converts it to +Inf on read, so
// comparisons treat it as the finite value 999_999_999.
type Quantifier struct {
	QType QuantifierType `json:"qtype"`
	Noun  string         `json:"noun"`
	VMin  float64        `json:"vmin"`
	VMax  float64        `json:"vmax"`
	Op    QuantifierOp   `json:"op"`
	Unit  string         `json:"unit"`
}

// SourceType distinguishes where a claim was extracted from.
type SourceType string

const (
	SourceText  SourceType = "text"
	SourceImage SourceType = "image"
)

// ClaimSource records provenance. Merged during dedup (text preferred over
// image; otherwise first image source wins).
type ClaimSource struct {
	Type       SourceType `json:"type"`
	ImageURL   string     `json:"image_url,omitempty"`
	ImageIndex *int       `json:"image_index,omitempty"`
}

// GroundingMetadata is attached to verified claims after a successful
// map-grounding call.
type GroundingMetadata struct {
	Verified                bool       `json:"verified"`
	Source                  string     `json:"source"`
	PlaceID                 string     `json:"place_id,omitempty"`
	PlaceName               string     `json:"place_name,omitempty"`
	PlaceURI                string     `json:"place_uri,omitempty"`
	Coordinates             *LatLng    `json:"coordinates,omitempty"`
	ExactDistanceMeters     *float64   `json:"exact_distance_meters,omitempty"`
	WalkingTimeMinutes      *float64   `json:"walking_time_minutes,omitempty"`
	RecommendedRadiusMeters *float64   `json:"recommended_radius_meters,omitempty"`
	Confidence              float64    `json:"confidence"`
	VerifiedAt              *time.Time `json:"verified_at,omitempty"`
	SupportingEvidence      string     `json:"supporting_evidence,omitempty"`
}

// LatLng is a WGS84 coordinate pair in application convention (lat, lng).
// The store adapter translates this to the provider's {lat, lon} naming.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Claim is an atomic, typed natural-language assertion about a listing or a
// query.
type Claim struct {
	ID          string      `json:"id"`
	Text        string      `json:"claim"`
	ClaimType   ClaimType   `json:"claim_type"`
	Domain      Domain      `json:"domain"`
	RoomType    string      `json:"room_type,omitempty"`
	Kind        Kind        `json:"kind"`
	IsSpecific  bool        `json:"is_specific"`
	HasQuants   bool        `json:"has_quantifiers"`
	Negation    bool        `json:"negation"`
	FromClaim   string      `json:"from_claim,omitempty"`
	Weight      float64     `json:"weight"`
	Source      ClaimSource `json:"source"`
	Quantifiers []Quantifier `json:"quantifiers,omitempty"`
	Grounding   *GroundingMetadata `json:"grounding_metadata,omitempty"`
}

// EmbeddedClaim is a Claim plus its dense vector embedding and, when
// quantifiers were extracted, a templatized text form (numeric literals
// other than counts replaced with VAR_n placeholders).
type EmbeddedClaim struct {
	Claim
	Embedding     []float32 `json:"claim_vector"`
	TemplatedText string    `json:"templated_text,omitempty"`
}

// AvailabilityRange is one open-or-closed availability window.
type AvailabilityRange struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// ImageMetadata describes one source image and its derived description.
type ImageMetadata struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// ApartmentDocument is the canonical, denormalized view of one listing,
// assembled from its claim documents for the /apartments read API.
type ApartmentDocument struct {
	ApartmentID          string              `json:"apartment_id"`
	Title                string              `json:"title,omitempty"`
	NeighborhoodID       string              `json:"neighborhood_id,omitempty"`
	Address              string              `json:"address,omitempty"`
	Location             *LatLng             `json:"location,omitempty"`
	RawDescription       string              `json:"raw_description"`
	ImageURLs            []string            `json:"image_urls,omitempty"`
	ImageMetadata        []ImageMetadata     `json:"image_metadata,omitempty"`
	Claims               []EmbeddedClaim     `json:"claims"`
	RentPrice            *float64            `json:"rent_price,omitempty"`
	AvailabilityDates    []AvailabilityRange `json:"availability_dates,omitempty"`
	PropertySummary      string              `json:"property_summary,omitempty"`
	LocationSummary      string              `json:"location_summary,omitempty"`
	LocationWidgetToken  string              `json:"location_widget_token,omitempty"`
}

// CanonicalClaimDocID is the id of the apartment-domain document that
// carries the summary/title fields patched during enrichment.
func CanonicalClaimDocID(apartmentID string) string {
	return apartmentID + "_claim_0"
}

// RoomDocID returns the deterministic id for the i-th room-domain claim.
func RoomDocID(apartmentID string, i int) string {
	return apartmentID + "_room_" + strconv.Itoa(i)
}

// ApartmentClaimDocID returns the deterministic id for the i-th
// apartment-domain claim.
func ApartmentClaimDocID(apartmentID string, i int) string {
	return apartmentID + "_claim_" + strconv.Itoa(i)
}

// NeighborhoodClaimDocID returns the deterministic id for the i-th
// neighborhood-domain claim. neighborhoodID defaults to "unknown" when empty.
func NeighborhoodClaimDocID(neighborhoodID string, i int) string {
	if neighborhoodID == "" {
		neighborhoodID = "unknown"
	}
	return neighborhoodID + "_claim_" + strconv.Itoa(i)
}
