// Package scoring implements the scorer & validators (spec §4.10):
// quantifier validation, per-match score adjustment, and domain-weighted
// ranking, including the intentionally-preserved "divide by total search
// claims" behavior spec §9 calls out.
package scoring

import (
	"sort"

	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/services/llm"
)

// Match is one candidate-claim match returned by the per-domain ANN search
// (spec §4.9 step 5).
type Match struct {
	CandidateID      string
	Score            float64
	MatchedClaim     claims.Claim
	MatchedKind      claims.Kind
	MatchedNegation  bool
	MatchedQuants    []claims.Quantifier
	SearchClaim      claims.Claim
	ClaimType        claims.ClaimType
	Domain           claims.Domain
}

// ValidateQuantifiers implements spec §4.10's table: every quantifier on
// the search claim must find a matched quantifier with the same
// (qtype, noun) and satisfy the operator's predicate. A search quantifier
// with no matching (qtype, noun) on the matched side is skipped, not
// failed — spec §9 calls this out explicitly and it must be preserved.
func ValidateQuantifiers(searchClaim claims.Claim, matchedQuants []claims.Quantifier) bool {
	for _, sq := range searchClaim.Quantifiers {
		mq, found := findMatching(matchedQuants, sq)
		if !found {
			continue
		}
		if !satisfies(sq, mq) {
			return false
		}
	}
	return true
}

func findMatching(matched []claims.Quantifier, search claims.Quantifier) (claims.Quantifier, bool) {
	for _, mq := range matched {
		if mq.QType == search.QType && mq.Noun == search.Noun {
			return mq, true
		}
	}
	return claims.Quantifier{}, false
}

func satisfies(search, matched claims.Quantifier) bool {
	switch search.Op {
	case claims.OpGTE:
		return matched.VMin >= search.VMin
	case claims.OpGT:
		return matched.VMin > search.VMin
	case claims.OpLTE:
		return matched.VMax <= search.VMax
	case claims.OpLT:
		return matched.VMax < search.VMax
	case claims.OpEquals, claims.OpApprox:
		return matched.VMin <= search.VMin && search.VMin <= matched.VMax
	case claims.OpRange:
		return !(matched.VMax < search.VMin || matched.VMin > search.VMax)
	default:
		return true
	}
}

// ValidatedMatch is a Match after apply_match_validation, with its scaled
// score and rejection status.
type ValidatedMatch struct {
	Match
	ValidatedScore float64
	Rejected       bool
}

// ApplyMatchValidation implements spec §4.10's apply_match_validation:
// threshold gate, quantifier-failure scaling, anti-kind scaling, negation
// scaling, and compatibility gating/scaling.
func ApplyMatchValidation(m Match, compat llm.Compatibility, hasCompat bool, doubleCheck bool) ValidatedMatch {
	threshold := claims.SimilarityThreshold(m.ClaimType)
	if m.ClaimType == claims.TypeLocation && m.SearchClaim.IsSpecific {
		threshold = 0.90
	}

	if !doubleCheck && m.Score < threshold {
		return ValidatedMatch{Match: m, Rejected: true}
	}

	score := m.Score

	if len(m.SearchClaim.Quantifiers) > 0 && !ValidateQuantifiers(m.SearchClaim, m.MatchedQuants) {
		score *= 0.1
	}

	if m.MatchedKind == claims.KindAnti {
		if m.Score >= 0.85 {
			score *= 0.01
		} else {
			score *= 0.05
		}
	}

	if m.SearchClaim.Negation != m.MatchedNegation {
		score *= 0.1
	}

	if hasCompat {
		switch compat {
		case llm.Incompatible:
			return ValidatedMatch{Match: m, Rejected: true}
		case llm.Partial:
			score *= 0.5
		}
	}

	return ValidatedMatch{Match: m, ValidatedScore: score}
}

// GetValidatedBestMatches keeps, for each distinct search claim text, the
// surviving match with the highest validated score (spec §4.10).
func GetValidatedBestMatches(validated []ValidatedMatch) []ValidatedMatch {
	best := make(map[string]ValidatedMatch)
	var order []string
	for _, v := range validated {
		if v.Rejected {
			continue
		}
		key := v.SearchClaim.Text
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = v
			continue
		}
		if v.ValidatedScore > existing.ValidatedScore {
			best[key] = v
		}
	}
	out := make([]ValidatedMatch, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// domainBaseWeights are the un-normalized weights from spec §4.10.
var domainBaseWeights = map[claims.Domain]float64{
	claims.DomainRoom:         0.35,
	claims.DomainApartment:    0.40,
	claims.DomainNeighborhood: 0.25,
}

// RankedResult is one apartment's final score after rank_results.
type RankedResult struct {
	ApartmentID    string
	FinalScore     float64
	CoverageCount  int
	insertionOrder int
}

// RankResults implements spec §4.10's rank_results: renormalized
// active-domain weighting, per-domain coverage divided by the *total*
// number of search claims (not the in-domain count — this is the
// intentional quirk spec §9 calls out), final filtering, and a stable sort
// by (coverage desc, score desc).
//
// bestByApartment maps apartment id to its best validated matches (already
// deduplicated per search claim via GetValidatedBestMatches), and
// totalSearchClaims is the total number of claims extracted from the query
// across all domains, not just the claims that matched in a given domain.
func RankResults(bestByApartment map[string][]ValidatedMatch, totalSearchClaims int, doubleCheck bool) []RankedResult {
	activeDomains := map[claims.Domain]bool{}
	for _, matches := range bestByApartment {
		for _, m := range matches {
			activeDomains[m.Domain] = true
		}
	}
	weights := renormalize(activeDomains)

	var results []RankedResult
	order := 0
	ids := make([]string, 0, len(bestByApartment))
	for id := range bestByApartment {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		matches := bestByApartment[id]
		domainSums := map[claims.Domain]float64{}
		for _, m := range matches {
			domainSums[m.Domain] += m.ValidatedScore
		}

		var finalScore float64
		denominator := float64(totalSearchClaims)
		if denominator <= 0 {
			denominator = 1
		}
		for domain, weight := range weights {
			perDomain := domainSums[domain] / denominator
			finalScore += perDomain * weight
		}

		coverage := len(matches)

		if doubleCheck {
			if coverage == 0 {
				continue
			}
		} else if finalScore <= 0.05 || coverage == 0 {
			continue
		}

		results = append(results, RankedResult{
			ApartmentID:    id,
			FinalScore:     finalScore,
			CoverageCount:  coverage,
			insertionOrder: order,
		})
		order++
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CoverageCount != results[j].CoverageCount {
			return results[i].CoverageCount > results[j].CoverageCount
		}
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].insertionOrder < results[j].insertionOrder
	})

	return results
}

func renormalize(active map[claims.Domain]bool) map[claims.Domain]float64 {
	var total float64
	for domain, isActive := range active {
		if isActive {
			total += domainBaseWeights[domain]
		}
	}
	if total == 0 {
		return map[claims.Domain]float64{}
	}
	out := make(map[claims.Domain]float64, len(active))
	for domain, isActive := range active {
		if isActive {
			out[domain] = domainBaseWeights[domain] / total
		}
	}
	return out
}
