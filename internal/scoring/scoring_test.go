package scoring

import (
	"testing"

	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/services/llm"
)

func TestValidateQuantifiersSkipsUnmatchedNoun(t *testing.T) {
	search := claims.Claim{Quantifiers: []claims.Quantifier{
		{QType: claims.QuantCount, Noun: "bathroom", VMin: 2, VMax: 2, Op: claims.OpEquals},
	}}
	matched := []claims.Quantifier{{QType: claims.QuantCount, Noun: "bedroom", VMin: 2, VMax: 2, Op: claims.OpEquals}}
	if !ValidateQuantifiers(search, matched) {
		t.Errorf("expected unmatched noun to be skipped, not failed")
	}
}

func TestValidateQuantifiersGTEFails(t *testing.T) {
	search := claims.Claim{Quantifiers: []claims.Quantifier{
		{QType: claims.QuantMoney, Noun: "price", VMin: 3000, VMax: claims.InfiniteBoundSentinel, Op: claims.OpGTE},
	}}
	matched := []claims.Quantifier{{QType: claims.QuantMoney, Noun: "price", VMin: 2000, VMax: 2000, Op: claims.OpEquals}}
	if ValidateQuantifiers(search, matched) {
		t.Errorf("expected GTE 3000 to fail against matched 2000")
	}
}

func TestApplyMatchValidationRejectsBelowThreshold(t *testing.T) {
	m := Match{Score: 0.5, ClaimType: claims.TypeAmenities, SearchClaim: claims.Claim{}}
	v := ApplyMatchValidation(m, llm.Compatible, false, false)
	if !v.Rejected {
		t.Errorf("expected low-score match to be rejected")
	}
}

func TestApplyMatchValidationScalesAntiKind(t *testing.T) {
	m := Match{Score: 0.9, ClaimType: claims.TypeAmenities, MatchedKind: claims.KindAnti, SearchClaim: claims.Claim{}}
	v := ApplyMatchValidation(m, llm.Compatible, false, false)
	if v.Rejected {
		t.Fatalf("expected match to survive thresholding")
	}
	if v.ValidatedScore != 0.9*0.01 {
		t.Errorf("expected anti-kind high-score scaling by 0.01, got %v", v.ValidatedScore)
	}
}

func TestApplyMatchValidationIncompatibleRejects(t *testing.T) {
	m := Match{Score: 0.9, ClaimType: claims.TypeAmenities, SearchClaim: claims.Claim{}}
	v := ApplyMatchValidation(m, llm.Incompatible, true, false)
	if !v.Rejected {
		t.Errorf("expected incompatible compatibility to reject the match")
	}
}

func TestRankResultsCoverageThenScore(t *testing.T) {
	best := map[string][]ValidatedMatch{
		"apt-1": {
			{Match: Match{Domain: claims.DomainApartment}, ValidatedScore: 0.9},
			{Match: Match{Domain: claims.DomainRoom}, ValidatedScore: 0.9},
		},
		"apt-2": {
			{Match: Match{Domain: claims.DomainApartment}, ValidatedScore: 0.95},
		},
	}
	results := RankResults(best, 4, false)
	if len(results) != 2 {
		t.Fatalf("expected 2 ranked results, got %d", len(results))
	}
	if results[0].ApartmentID != "apt-1" {
		t.Errorf("expected apt-1 (higher coverage) to rank first, got %s", results[0].ApartmentID)
	}
}

func TestRankResultsFiltersZeroScore(t *testing.T) {
	best := map[string][]ValidatedMatch{
		"apt-1": {{Match: Match{Domain: claims.DomainApartment}, ValidatedScore: 0.001}},
	}
	results := RankResults(best, 100, false)
	if len(results) != 0 {
		t.Errorf("expected negligible score to be filtered, got %+v", results)
	}
}
