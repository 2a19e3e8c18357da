// Package llm defines the claim-extraction and language-model façade the
// indexing and search pipelines call through (spec §4.1, §6, §9): the
// pipelines depend on this interface, never on a concrete provider, so they
// stay testable against fakes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/resilience"
)

// StructuredProperties is the caller-overridable structured extraction
// result from indexing pipeline phase 3 (spec §4.8 step 3).
type StructuredProperties struct {
	RentPrice          *float64
	AvailabilityStart  *time.Time
	AvailabilityEnd    *time.Time
}

// StructuredFilters is the query-side structured extraction result from
// search pipeline phase 1 (spec §4.9 step 1).
type StructuredFilters struct {
	RentPriceMin      *float64
	RentPriceMax      *float64
	AvailabilityStart *time.Time
	AvailabilityEnd   *time.Time
}

// HasRentFilter reports whether a rent bound was extracted.
func (f StructuredFilters) HasRentFilter() bool {
	return f.RentPriceMin != nil || f.RentPriceMax != nil
}

// HasAvailabilityFilter reports whether an availability bound was extracted.
func (f StructuredFilters) HasAvailabilityFilter() bool {
	return f.AvailabilityStart != nil || f.AvailabilityEnd != nil
}

// Compatibility is the LLM's verdict on a (query claim text, matched claim
// text) pair, per spec §4.9 step 8 / §4.10.
type Compatibility string

const (
	Compatible   Compatibility = "compatible"
	Partial      Compatibility = "partial"
	Incompatible Compatibility = "incompatible"
)

// CompatPair is one pair submitted to the batch compatibility validator.
type CompatPair struct {
	QueryClaim   string
	MatchedClaim string
}

// Client is the language-model façade used by both pipelines.
type Client interface {
	// ExtractClaims extracts atomic claims from text, optionally prefixed
	// with an address for context (spec §4.1).
	ExtractClaims(ctx context.Context, text string, address string) ([]claims.Claim, error)

	// ExtractStructuredProperties extracts rent_price/availability_dates
	// from free text when the caller didn't supply them (spec §4.8 step 3).
	ExtractStructuredProperties(ctx context.Context, text string) (StructuredProperties, error)

	// ExtractStructuredFilters extracts an optional rent_price range and
	// availability window from a search query (spec §4.9 step 1).
	ExtractStructuredFilters(ctx context.Context, query string) (StructuredFilters, error)

	// GenerateSummary produces a 3-5 sentence property summary from the
	// description and any image descriptions (spec §4.8 step 10).
	GenerateSummary(ctx context.Context, description string, imageDescriptions []string) (string, error)

	// GenerateTitle produces a 5-8 word title when the caller didn't supply
	// one (spec §4.8 step 10).
	GenerateTitle(ctx context.Context, description string) (string, error)

	// GenerateLocationSummary produces a maps-grounded 3-4 sentence
	// location summary for an apartment with a known address/location
	// (spec §4.8 step 10).
	GenerateLocationSummary(ctx context.Context, address string, location claims.LatLng) (string, error)

	// ValidateCompatibility batches pairwise compatibility judgments
	// (spec §4.9 step 8).
	ValidateCompatibility(ctx context.Context, pairs []CompatPair) ([]Compatibility, error)

	// GenerateVariants produces count alternate phrasings of claimText for
	// the expansion phase (spec §4.4): mode "derived" asks for
	// synonyms/generalizations, mode "anti" asks for clear semantic
	// opposites.
	GenerateVariants(ctx context.Context, claimText string, mode string, count int) ([]string, error)

	// GroundClaim issues the two-call map-grounding sequence for one claim:
	// a free-form map-grounded completion followed by a structured
	// extraction of place fields (spec §4.3). rawLocation is nil when the
	// caller has no address/location context.
	GroundClaim(ctx context.Context, claimText string, rawLocation *claims.LatLng) (GroundedFields, error)
}

// GroundedFields is the structured output of the second grounding call
// (spec §4.3): place identity, coordinates, and distance/time estimates,
// parsed by the LLM rather than by heuristic string parsing.
type GroundedFields struct {
	PlaceID                string
	PlaceName              string
	PlaceURI               string
	Coordinates            *claims.LatLng
	ExactDistanceMeters    *float64
	WalkingTimeMinutes     *float64
	PlaceType              string
	SupportingEvidence     string
	Confidence             float64
}

// GoogleConfig configures the Gemini-backed client.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// GoogleClient implements Client against the Gemini API, wrapped in a
// circuit breaker and retried with exponential backoff on transient
// failures, per spec §9 ("the service façade must not leak provider-
// specific error types upward").
type GoogleClient struct {
	cfg        GoogleConfig
	httpClient *http.Client
	breakers   *resilience.Manager
	logger     observability.Logger
}

// NewGoogleClient constructs a GoogleClient.
func NewGoogleClient(cfg GoogleConfig, breakers *resilience.Manager, logger observability.Logger) *GoogleClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GoogleClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breakers:   breakers,
		logger:     logger,
	}
}

// callWithRetry runs a generation call through the circuit breaker and
// retries failures with exponential backoff, up to 3 retries. Every LLM
// call, the two grounding calls included, goes through it; geocode calls
// do not.
func (c *GoogleClient) callWithRetry(ctx context.Context, breakerName string, fn func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	op := func() error {
		v, err := c.breakers.Execute(ctx, breakerName, resilience.CircuitBreakerConfig{}, fn)
		if err != nil {
			result = nil
			return err
		}
		result = v
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, apperrors.Transient(err, "llm call failed after retries")
	}
	return result, nil
}

func (c *GoogleClient) generateContent(ctx context.Context, prompt string) (string, error) {
	v, err := c.callWithRetry(ctx, resilience.BreakerLLM, func() (interface{}, error) {
		return c.doGenerate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *GoogleClient) doGenerate(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		c.cfg.Model, c.cfg.APIKey,
	)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": prompt}}},
		},
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty gemini response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (c *GoogleClient) ExtractClaims(ctx context.Context, text string, address string) ([]claims.Claim, error) {
	prompt := buildExtractionPrompt(text, address)
	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseClaimsJSON(raw)
}

func (c *GoogleClient) ExtractStructuredProperties(ctx context.Context, text string) (StructuredProperties, error) {
	prompt := "Extract rent_price (number) and availability_dates ({start,end} ISO dates) as JSON from:\n" + text
	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return StructuredProperties{}, err
	}
	return parseStructuredPropertiesJSON(raw)
}

func (c *GoogleClient) ExtractStructuredFilters(ctx context.Context, query string) (StructuredFilters, error) {
	prompt := "Extract an optional rent_price range ({min?, max?}) and availability_dates ({start, end?} ISO dates) from this rental search query. Omit fields the query doesn't mention. Return JSON from:\n" + query
	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return StructuredFilters{}, err
	}
	return parseStructuredFiltersJSON(raw)
}

func (c *GoogleClient) GenerateSummary(ctx context.Context, description string, imageDescriptions []string) (string, error) {
	prompt := "Write a 3-5 sentence property summary from:\n" + description
	for _, d := range imageDescriptions {
		prompt += "\nImage: " + d
	}
	return c.generateContent(ctx, prompt)
}

func (c *GoogleClient) GenerateTitle(ctx context.Context, description string) (string, error) {
	prompt := "Write a 5-8 word listing title for:\n" + description
	return c.generateContent(ctx, prompt)
}

func (c *GoogleClient) GenerateLocationSummary(ctx context.Context, address string, location claims.LatLng) (string, error) {
	prompt := fmt.Sprintf("Write a 3-4 sentence maps-grounded location summary for the address %q at %f,%f", address, location.Lat, location.Lng)
	return c.generateContent(ctx, prompt)
}

func (c *GoogleClient) ValidateCompatibility(ctx context.Context, pairs []CompatPair) ([]Compatibility, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	prompt := "Classify each pair as compatible, partial, or incompatible. Return a JSON array of strings in order.\n"
	for i, p := range pairs {
		prompt += fmt.Sprintf("%d. query=%q matched=%q\n", i+1, p.QueryClaim, p.MatchedClaim)
	}
	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseCompatibilityJSON(raw, len(pairs))
}

func (c *GoogleClient) GenerateVariants(ctx context.Context, claimText string, mode string, count int) ([]string, error) {
	var instruction string
	switch mode {
	case "anti":
		instruction = fmt.Sprintf("Write %d short phrases that are clear semantic opposites of this rental-listing claim", count)
	default:
		instruction = fmt.Sprintf("Write %d short synonym or generalization phrases of this rental-listing claim", count)
	}
	prompt := fmt.Sprintf("%s. Return a JSON array of strings only.\nClaim: %q", instruction, claimText)
	raw, err := c.generateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseVariantsJSON(raw)
}

func (c *GoogleClient) GroundClaim(ctx context.Context, claimText string, rawLocation *claims.LatLng) (GroundedFields, error) {
	locationHint := ""
	if rawLocation != nil {
		locationHint = fmt.Sprintf(" near %f,%f", rawLocation.Lat, rawLocation.Lng)
	}
	freeform, err := c.generateContent(ctx, fmt.Sprintf("Use your maps knowledge to describe what real place, if any, this claim refers to%s: %q", locationHint, claimText))
	if err != nil {
		return GroundedFields{}, err
	}

	structuredPrompt := "Extract place_id, place_name, place_uri, coordinates {lat,lng}, exact_distance_meters, walking_time_minutes, place_type, confidence (0-1) as JSON from:\n" + freeform
	raw, err := c.generateContent(ctx, structuredPrompt)
	if err != nil {
		return GroundedFields{}, err
	}
	return parseGroundedFieldsJSON(raw)
}
