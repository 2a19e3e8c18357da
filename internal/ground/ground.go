// Package ground implements the grounding service (spec §4.3): deciding
// which claims are worth verifying against a map provider, and producing
// `verified`-kind claims with structured place metadata.
package ground

import (
	"context"
	"strings"
	"time"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/cache"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/services/llm"
)

// eligibleTypes are the only claim types should_ground ever admits, per
// spec §4.3.
var eligibleTypes = map[claims.ClaimType]bool{
	claims.TypeLocation:  true,
	claims.TypeTransport: true,
	claims.TypeAmenities: true,
}

// Config configures the grounding service.
type Config struct {
	Enabled             bool
	MaxPerListing       int
	LocationTTL         time.Duration // transport/location
	NeighborhoodTTL     time.Duration
	DefaultTTL          time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxPerListing <= 0 {
		c.MaxPerListing = 3
	}
	if c.LocationTTL <= 0 {
		c.LocationTTL = 90 * 24 * time.Hour
	}
	if c.NeighborhoodTTL <= 0 {
		c.NeighborhoodTTL = 14 * 24 * time.Hour
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 14 * 24 * time.Hour
	}
}

// cacheKey is the grounding cache's composite key: (quantized location,
// claim type, normalized claim-text prefix), per spec §4.3.
type cacheKey struct {
	latQ      float64
	lngQ      float64
	claimType claims.ClaimType
	prefix    string
}

// Result is ground_batch's output: verified claims and the sources
// consulted. It carries no map widget tokens.
type Result struct {
	VerifiedClaims []claims.Claim
	Sources        []string
}

// Service implements should_ground / ground_batch.
type Service struct {
	cfg    Config
	llm    llm.Client
	cache  *cache.TTLCache[cacheKey, claims.Claim]
	logger observability.Logger
}

// New constructs a grounding Service.
func New(cfg Config, llmClient llm.Client, logger observability.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Service{
		cfg:    cfg,
		llm:    llmClient,
		cache:  cache.NewTTLCache[cacheKey, claims.Claim](8192, cfg.DefaultTTL),
		logger: logger,
	}
}

// ShouldGround reports whether claim is a grounding candidate (spec §4.3).
func (s *Service) ShouldGround(c claims.Claim) bool {
	if !s.cfg.Enabled {
		return false
	}
	if c.Domain == claims.DomainRoom {
		return false
	}
	if !c.IsSpecific {
		return false
	}
	return eligibleTypes[c.ClaimType]
}

func quantize(v float64) float64 {
	return float64(int(v*100)) / 100
}

func normalizedPrefix(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) > 40 {
		t = t[:40]
	}
	return t
}

func (s *Service) ttlFor(claimType claims.ClaimType) time.Duration {
	switch claimType {
	case claims.TypeTransport, claims.TypeLocation:
		return s.cfg.LocationTTL
	case claims.TypeNeighborhood:
		return s.cfg.NeighborhoodTTL
	default:
		return s.cfg.DefaultTTL
	}
}

// GroundBatch verifies up to MaxPerListing eligible claims in parallel
// (spec §4.3). Any single failure is logged and the original claim is kept
// unchanged; this never fails the caller.
func (s *Service) GroundBatch(ctx context.Context, candidates []claims.Claim, location *claims.LatLng) Result {
	if !s.cfg.Enabled || location == nil {
		return Result{}
	}

	var toGround []claims.Claim
	for _, c := range candidates {
		if s.ShouldGround(c) {
			toGround = append(toGround, c)
		}
		if len(toGround) >= s.cfg.MaxPerListing {
			break
		}
	}

	type groundOutcome struct {
		claim  claims.Claim
		source string
		ok     bool
	}
	outcomes := make([]groundOutcome, len(toGround))
	done := make(chan int, len(toGround))

	for i, c := range toGround {
		go func(i int, c claims.Claim) {
			defer func() { done <- i }()
			verified, source, err := s.groundOne(ctx, c, *location)
			if err != nil {
				s.logger.Warn("grounding failed, keeping original claim", map[string]interface{}{
					"claim": c.Text, "error": err.Error(),
				})
				return
			}
			outcomes[i] = groundOutcome{claim: verified, source: source, ok: true}
		}(i, c)
	}
	for range toGround {
		<-done
	}

	var result Result
	for _, o := range outcomes {
		if o.ok {
			result.VerifiedClaims = append(result.VerifiedClaims, o.claim)
			result.Sources = append(result.Sources, o.source)
		}
	}
	return result
}

func (s *Service) groundOne(ctx context.Context, c claims.Claim, location claims.LatLng) (claims.Claim, string, error) {
	key := cacheKey{
		latQ:      quantize(location.Lat),
		lngQ:      quantize(location.Lng),
		claimType: c.ClaimType,
		prefix:    normalizedPrefix(c.Text),
	}
	if cached, ok := s.cache.Get(key); ok {
		return cached, "cache", nil
	}

	fields, err := s.llm.GroundClaim(ctx, c.Text, &location)
	if err != nil {
		return claims.Claim{}, "", apperrors.Transient(err, "ground claim %q", c.Text)
	}

	verified := c
	verified.Kind = claims.KindVerified
	verified.FromClaim = c.Text
	verified.Weight = c.Weight * 1.15
	verified.Grounding = &claims.GroundingMetadata{
		Verified:            true,
		Source:              "maps_grounding",
		PlaceID:             fields.PlaceID,
		PlaceName:           fields.PlaceName,
		PlaceURI:            fields.PlaceURI,
		Coordinates:         fields.Coordinates,
		ExactDistanceMeters: fields.ExactDistanceMeters,
		WalkingTimeMinutes:  fields.WalkingTimeMinutes,
		Confidence:          fields.Confidence,
		SupportingEvidence:  fields.SupportingEvidence,
	}
	if radius := recommendedRadius(fields.PlaceType); radius != nil {
		verified.Grounding.RecommendedRadiusMeters = radius
	}
	verifiedAt := timeNow()
	verified.Grounding.VerifiedAt = &verifiedAt

	if fields.ExactDistanceMeters != nil {
		verified.Quantifiers = append(verified.Quantifiers, claims.Quantifier{
			QType: claims.QuantDistance,
			Noun:  "distance",
			VMin:  *fields.ExactDistanceMeters,
			VMax:  *fields.ExactDistanceMeters,
			Op:    claims.OpApprox,
			Unit:  "meters",
		})
	}

	s.cache.SetWithTTL(key, verified, s.ttlFor(c.ClaimType))
	return verified, "maps_grounding", nil
}

// recommendedRadius maps a place type to a search radius in meters, per
// spec §4.3's table.
func recommendedRadius(placeType string) *float64 {
	var v float64
	switch strings.ToLower(placeType) {
	case "station", "stop", "subway_station", "transit_station":
		v = 650
	case "landmark", "point_of_interest":
		v = 1000
	case "park":
		v = 2200
	case "neighborhood", "sublocality":
		v = 5500
	case "borough", "administrative_area":
		v = 15000
	default:
		return nil
	}
	return &v
}

// timeNow is a thin indirection so grounding timestamps are easy to stub in
// tests without reaching into package internals.
var timeNow = func() time.Time { return time.Now() }
