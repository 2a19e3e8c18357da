// Package search implements the query pipeline (spec §4.9): parsing,
// redundant-claim filtering, quantifier extraction, per-domain ANN search,
// hierarchy intersection, anti-claim and quantifier gating, compatibility
// validation, and scoring/ranking.
package search

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/quantifier"
	"github.com/frenta/claimsearch/internal/scoring"
	"github.com/frenta/claimsearch/internal/services/embedding"
	"github.com/frenta/claimsearch/internal/services/llm"
	"github.com/frenta/claimsearch/internal/store"
)

const compatibilityBatchSize = 50

// Query is a public search request (spec §4.9).
type Query struct {
	Text               string
	TopK               int
	UserLocation       *claims.LatLng
	VerifyClaims       bool
	DoubleCheckMatches bool
}

// Result is one ranked apartment.
type Result struct {
	ApartmentID   string
	Score         float64
	CoverageCount int
}

// Pipeline wires every search-time dependency together.
type Pipeline struct {
	LLM        llm.Client
	Embedder   embedding.Client
	Quantifier *quantifier.Extractor
	Store      store.Store
	Logger     observability.Logger
}

var availabilityKeywords = []string{"available", "move-in", "move in", "lease start", "vacate"}

// Search runs the ten-phase query pipeline (spec §4.9) and returns ranked
// results, already sliced to TopK.
func (p *Pipeline) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, apperrors.Invalid("query text is required")
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}

	// Phase 1: parse query, concurrent.
	var queryClaims []claims.Claim
	var filters llm.StructuredFilters
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c, err := p.LLM.ExtractClaims(ctx, q.Text, "")
		if err != nil {
			p.Logger.Warn("query claim extraction failed", map[string]interface{}{"error": err.Error()})
			return
		}
		queryClaims = c
	}()
	go func() {
		defer wg.Done()
		f, err := p.LLM.ExtractStructuredFilters(ctx, q.Text)
		if err != nil {
			p.Logger.Warn("structured filter extraction failed", map[string]interface{}{"error": err.Error()})
			return
		}
		filters = f
	}()
	wg.Wait()

	if len(queryClaims) == 0 {
		return nil, nil
	}

	// Phase 2: drop redundant claims already covered by a structured filter.
	queryClaims = filterRedundantClaims(queryClaims, filters)
	totalSearchClaims := len(queryClaims)
	if totalSearchClaims == 0 {
		return nil, nil
	}

	// Phase 3: quantifier extraction on remaining query claims.
	queryClaims = p.Quantifier.Extract(ctx, queryClaims)

	// Phase 4: embedding with retrieval_query task.
	texts := make([]string, len(queryClaims))
	for i, c := range queryClaims {
		texts[i] = c.Text
	}
	vectors, err := p.Embedder.Embed(ctx, texts, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, apperrors.Fatal(err, "failed to embed query claims")
	}

	// Phase 5: per-domain ANN, concurrent.
	roomMatches, apartmentMatches, neighborhoodMatches := p.searchDomains(ctx, queryClaims, vectors, filters, q.UserLocation)

	// Phase 6: hierarchy intersection + quantifier gate.
	validIDs, matchesByApartment := p.intersectHierarchy(ctx, roomMatches, apartmentMatches, neighborhoodMatches, filters)

	// Phase 7: anti-claim gate.
	validIDs = antiClaimGate(validIDs, matchesByApartment)

	// Phase 8: compatibility validation.
	compatByPair := map[string]llm.Compatibility{}
	if q.VerifyClaims {
		compatByPair = p.validateCompatibility(ctx, validIDs, matchesByApartment)
	}

	// Score & validate.
	bestByApartment := make(map[string][]scoring.ValidatedMatch, len(validIDs))
	for _, id := range validIDs {
		var validated []scoring.ValidatedMatch
		for _, m := range matchesByApartment[id] {
			compat, hasCompat := llm.Compatible, false
			if q.VerifyClaims {
				if c, ok := compatByPair[pairKey(m.SearchClaim.Text, m.MatchedClaim.Text)]; ok {
					compat, hasCompat = c, true
				}
			}
			validated = append(validated, scoring.ApplyMatchValidation(m, compat, hasCompat, q.DoubleCheckMatches))
		}
		bestByApartment[id] = scoring.GetValidatedBestMatches(validated)
	}

	// Phase 9: score & rank.
	ranked := scoring.RankResults(bestByApartment, totalSearchClaims, q.DoubleCheckMatches)

	// Phase 10: top_k.
	if len(ranked) > q.TopK {
		ranked = ranked[:q.TopK]
	}

	out := make([]Result, len(ranked))
	for i, r := range ranked {
		out[i] = Result{ApartmentID: r.ApartmentID, Score: r.FinalScore, CoverageCount: r.CoverageCount}
	}
	return out, nil
}

func filterRedundantClaims(in []claims.Claim, filters llm.StructuredFilters) []claims.Claim {
	out := in[:0:0]
	for _, c := range in {
		if filters.HasRentFilter() && c.ClaimType == claims.TypePricing {
			continue
		}
		if filters.HasAvailabilityFilter() && c.ClaimType == claims.TypeRestrictions && mentionsAvailability(c.Text) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func mentionsAvailability(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range availabilityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (p *Pipeline) searchDomains(ctx context.Context, queryClaims []claims.Claim, vectors [][]float32, filters llm.StructuredFilters, loc *claims.LatLng) (rooms, apartments, neighborhoods map[string][]scoring.Match) {
	rooms = map[string][]scoring.Match{}
	apartments = map[string][]scoring.Match{}
	neighborhoods = map[string][]scoring.Match{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	domainSpecs := []struct {
		index         store.Index
		domain        claims.Domain
		k             int
		numCandidates int
		target        *map[string][]scoring.Match
	}{
		{store.IndexRooms, claims.DomainRoom, 100, 500, &rooms},
		{store.IndexApartments, claims.DomainApartment, 200, 500, &apartments},
		{store.IndexNeighborhoods, claims.DomainNeighborhood, 50, 200, &neighborhoods},
	}

	for _, spec := range domainSpecs {
		for i, c := range queryClaims {
			if spec.domain == claims.DomainNeighborhood && c.ClaimType != claims.TypeNeighborhood {
				continue
			}
			spec, c, vec := spec, c, vectors[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				req := store.SearchRequest{
					Vector: &store.VectorQuery{Field: "claim_vector", Vector: vec, K: spec.k, NumCandidates: spec.numCandidates},
					Size:   spec.k,
				}
				if spec.domain == claims.DomainApartment {
					req.Filter = apartmentFilter(filters, loc)
				}
				resp, err := p.Store.Search(ctx, spec.index, req)
				if err != nil {
					p.Logger.Warn("domain search failed", map[string]interface{}{"domain": string(spec.domain), "error": err.Error()})
					return
				}
				mu.Lock()
				for _, hit := range resp.Hits {
					apartmentID, _ := hit.Source["apartment_id"].(string)
					if apartmentID == "" {
						continue
					}
					(*spec.target)[apartmentID] = append((*spec.target)[apartmentID], hitToMatch(hit, c, spec.domain))
				}
				mu.Unlock()
			}()
		}
	}
	wg.Wait()
	return rooms, apartments, neighborhoods
}

func apartmentFilter(filters llm.StructuredFilters, loc *claims.LatLng) *store.BoolFilter {
	if !filters.HasRentFilter() && loc == nil {
		return nil
	}
	f := &store.BoolFilter{}
	if filters.HasRentFilter() {
		rf := store.RangeFilter{Field: "rent_price"}
		if filters.RentPriceMin != nil {
			rf.GTE = *filters.RentPriceMin
		}
		if filters.RentPriceMax != nil {
			rf.LTE = *filters.RentPriceMax
		}
		f.Range = append(f.Range, rf)
	}
	return f
}

func hitToMatch(hit store.SearchHit, searchClaim claims.Claim, domain claims.Domain) scoring.Match {
	m := scoring.Match{
		CandidateID: hit.ID,
		Score:       hit.Score,
		SearchClaim: searchClaim,
		ClaimType:   searchClaim.ClaimType,
		Domain:      domain,
	}
	if text, ok := hit.Source["claim"].(string); ok {
		m.MatchedClaim = claims.Claim{Text: text}
	}
	if kind, ok := hit.Source["kind"].(string); ok {
		m.MatchedKind = claims.Kind(kind)
	}
	if neg, ok := hit.Source["negation"].(bool); ok {
		m.MatchedNegation = neg
	}
	m.MatchedQuants = parseStoredQuantifiers(hit.Source["quantifiers"])
	return m
}

// parseStoredQuantifiers decodes the "quantifiers" field of a stored claim
// document back into typed quantifiers. A live Elasticsearch hit carries it
// as []interface{} of decoded JSON objects; storetest's in-memory fake
// carries the original []claims.Quantifier value untouched. Round-tripping
// through JSON handles both shapes identically, and a malformed or absent
// field simply yields no quantifiers (the gate then skips that claim,
// per spec §4.10).
func parseStoredQuantifiers(raw interface{}) []claims.Quantifier {
	if raw == nil {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var quants []claims.Quantifier
	if err := json.Unmarshal(encoded, &quants); err != nil {
		return nil
	}
	return quants
}

func (p *Pipeline) intersectHierarchy(ctx context.Context, rooms, apartments, neighborhoods map[string][]scoring.Match, filters llm.StructuredFilters) ([]string, map[string][]scoring.Match) {
	combined := map[string][]scoring.Match{}

	var ids map[string]bool
	if len(apartments) > 0 {
		ids = keysOf(apartments)
	}
	if len(rooms) > 0 {
		ids = intersectOrSeed(ids, keysOf(rooms))
	}
	if len(neighborhoods) > 0 {
		neighborhoodIDs := keysOf(neighborhoods)
		matchingApartments, err := p.apartmentsInNeighborhoods(ctx, neighborhoodIDs)
		if err != nil {
			p.Logger.Warn("neighborhood intersection lookup failed", map[string]interface{}{"error": err.Error()})
		} else {
			ids = intersectOrSeed(ids, matchingApartments)
		}
	}
	if ids == nil {
		ids = map[string]bool{}
	}

	for id := range ids {
		combined[id] = append(combined[id], apartments[id]...)
		combined[id] = append(combined[id], rooms[id]...)
		combined[id] = append(combined[id], neighborhoods[id]...)
	}

	var out []string
	for id, matches := range combined {
		if quantifierGatePasses(matches) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, combined
}

func keysOf(m map[string][]scoring.Match) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func intersectOrSeed(existing, next map[string]bool) map[string]bool {
	if existing == nil {
		return next
	}
	out := map[string]bool{}
	for id := range existing {
		if next[id] {
			out[id] = true
		}
	}
	return out
}

func (p *Pipeline) apartmentsInNeighborhoods(ctx context.Context, neighborhoodIDs map[string]bool) (map[string]bool, error) {
	ids := make([]string, 0, len(neighborhoodIDs))
	for id := range neighborhoodIDs {
		ids = append(ids, id)
	}
	resp, err := p.Store.Search(ctx, store.IndexApartments, store.SearchRequest{
		Filter: &store.BoolFilter{Must: []store.TermFilter{{Field: "neighborhood_id", Values: ids}}},
		Size:   1000,
	})
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, hit := range resp.Hits {
		if apartmentID, ok := hit.Source["apartment_id"].(string); ok {
			out[apartmentID] = true
		}
	}
	return out, nil
}

// quantifierGatePasses drops an apartment on the first quantifier mismatch
// against any of its surviving matches (spec §4.9 step 6).
func quantifierGatePasses(matches []scoring.Match) bool {
	for _, m := range matches {
		if len(m.SearchClaim.Quantifiers) == 0 {
			continue
		}
		if !scoring.ValidateQuantifiers(m.SearchClaim, m.MatchedQuants) {
			return false
		}
	}
	return true
}

// antiClaimGate drops an apartment when, for any search claim, its best
// anti-match outscores its best non-anti match by the spec's rule.
func antiClaimGate(ids []string, matchesByApartment map[string][]scoring.Match) []string {
	var out []string
	for _, id := range ids {
		byClaim := map[string][]scoring.Match{}
		for _, m := range matchesByApartment[id] {
			byClaim[m.SearchClaim.Text] = append(byClaim[m.SearchClaim.Text], m)
		}
		dropped := false
		for _, ms := range byClaim {
			var bestAnti, bestPositive float64
			for _, m := range ms {
				if m.MatchedKind == claims.KindAnti {
					if m.Score > bestAnti {
						bestAnti = m.Score
					}
				} else if m.Score > bestPositive {
					bestPositive = m.Score
				}
			}
			if bestAnti >= 0.90 && bestAnti > bestPositive {
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, id)
		}
	}
	return out
}

func (p *Pipeline) validateCompatibility(ctx context.Context, ids []string, matchesByApartment map[string][]scoring.Match) map[string]llm.Compatibility {
	globalBest := map[string]scoring.Match{}
	for _, id := range ids {
		for _, m := range matchesByApartment[id] {
			key := pairKey(m.SearchClaim.Text, m.MatchedClaim.Text)
			if existing, ok := globalBest[key]; !ok || m.Score > existing.Score {
				globalBest[key] = m
			}
		}
	}

	keys := make([]string, 0, len(globalBest))
	pairs := make([]llm.CompatPair, 0, len(globalBest))
	for key, m := range globalBest {
		keys = append(keys, key)
		pairs = append(pairs, llm.CompatPair{QueryClaim: m.SearchClaim.Text, MatchedClaim: m.MatchedClaim.Text})
	}

	out := make(map[string]llm.Compatibility, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for start := 0; start < len(pairs); start += compatibilityBatchSize {
		end := start + compatibilityBatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batchKeys := keys[start:end]
		batchPairs := pairs[start:end]
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := p.LLM.ValidateCompatibility(ctx, batchPairs)
			if err != nil {
				p.Logger.Warn("compatibility validation failed", map[string]interface{}{"error": err.Error()})
				return
			}
			mu.Lock()
			for i, k := range batchKeys {
				if i < len(results) {
					out[k] = results[i]
				}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func pairKey(queryClaim, matchedClaim string) string {
	return queryClaim + "\x1f" + matchedClaim
}
