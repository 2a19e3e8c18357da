package api

import "github.com/frenta/claimsearch/internal/claims"

// IndexRequest is the JSON body for POST /index.
type IndexRequest struct {
	ApartmentID    string           `json:"apartment_id" binding:"required"`
	Title          string           `json:"title"`
	Address        string           `json:"address"`
	NeighborhoodID string           `json:"neighborhood_id"`
	RawDescription string           `json:"raw_description" binding:"required"`
	ImageURLs      []string         `json:"image_urls"`
	Rooms          []IndexRoomInput `json:"rooms"`

	// ImageMetadata, RentPrice, and AvailabilityDates are caller-supplied
	// values that win over the pipeline's own extraction per field
	// (spec §4.8 step 3).
	ImageMetadata                []claims.ImageMetadata     `json:"image_metadata"`
	PrecomputedImageDescriptions []string                   `json:"precomputed_image_descriptions"`
	RentPrice                    *float64                   `json:"rent_price"`
	AvailabilityDates            []claims.AvailabilityRange `json:"availability_dates"`
}

// IndexRoomInput is one room's raw text in an IndexRequest.
type IndexRoomInput struct {
	RoomType string `json:"room_type"`
	Text     string `json:"text"`
}

// IndexResponse reports what the indexing pipeline did.
type IndexResponse struct {
	ApartmentID     string `json:"apartment_id"`
	RoomClaims      int    `json:"room_claims"`
	ApartmentClaims int    `json:"apartment_claims"`
	NeighborhoodID  string `json:"neighborhood_id,omitempty"`
	GroundedClaims  int    `json:"grounded_claims"`
}

// BatchIndexRequest is the JSON body for POST /index/batch.
type BatchIndexRequest struct {
	Listings []IndexRequest `json:"listings" binding:"required"`
}

// BatchIndexResponse reports per-listing outcomes; a listing that failed
// carries its id and error instead of a summary.
type BatchIndexResponse struct {
	Results []BatchIndexResult `json:"results"`
}

// BatchIndexResult is one listing's outcome within a batch submission.
type BatchIndexResult struct {
	ApartmentID string         `json:"apartment_id"`
	Summary     *IndexResponse `json:"summary,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SearchRequestBody is the JSON body for POST /search.
type SearchRequestBody struct {
	Query              string   `json:"query" binding:"required"`
	TopK               int      `json:"top_k"`
	UserLocation       *LatLng  `json:"user_location,omitempty"`
	VerifyClaims       *bool    `json:"verify_claims,omitempty"`
	DoubleCheckMatches bool     `json:"double_check_matches"`
}

// LatLng is the wire representation of a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchResponseBody is the JSON response for POST /search.
type SearchResponseBody struct {
	Results []SearchResultItem `json:"results"`
}

// SearchResultItem is one ranked apartment in a search response.
type SearchResultItem struct {
	ApartmentID   string  `json:"apartment_id"`
	Score         float64 `json:"score"`
	CoverageCount int     `json:"coverage_count"`
}
