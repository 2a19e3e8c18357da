package expansion

import (
	"context"
	"testing"

	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/services/llm"
)

type fakeLLM struct {
	llm.Client
	derivedTexts []string
	antiTexts    []string
	err          error
}

func (f *fakeLLM) GenerateVariants(_ context.Context, _ string, mode string, _ int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if mode == "anti" {
		return f.antiTexts, nil
	}
	return f.derivedTexts, nil
}

func TestExpandDerivedOnly(t *testing.T) {
	fake := &fakeLLM{derivedTexts: []string{"close to transit", "near the subway"}}
	e := New(fake, 4, nil)

	base := []claims.Claim{{Text: "near subway", ClaimType: claims.TypeTransport, Weight: 1.0}}
	out := e.Expand(context.Background(), base)

	if len(out) != 3 {
		t.Fatalf("expected base + 2 derived, got %d: %+v", len(out), out)
	}
	var derivedCount int
	for _, c := range out {
		if c.Kind == claims.KindDerived {
			derivedCount++
			if c.Weight != 0.9 {
				t.Errorf("expected derived weight 0.9, got %v", c.Weight)
			}
			if c.FromClaim != "near subway" {
				t.Errorf("expected from_claim back-reference, got %q", c.FromClaim)
			}
		}
	}
	if derivedCount != 2 {
		t.Errorf("expected 2 derived claims, got %d", derivedCount)
	}
}

func TestExpandAntiOnlyForEligibleTypes(t *testing.T) {
	fake := &fakeLLM{derivedTexts: []string{"d1"}, antiTexts: []string{"a1", "a2"}}
	e := New(fake, 4, nil)

	base := []claims.Claim{{Text: "pets allowed", ClaimType: claims.TypePolicies, Negation: false, Weight: 1.0}}
	out := e.Expand(context.Background(), base)

	var antiCount int
	for _, c := range out {
		if c.Kind == claims.KindAnti {
			antiCount++
			if !c.Negation {
				t.Errorf("expected anti claim to flip negation")
			}
			if c.Weight != 0.5 {
				t.Errorf("expected anti weight 0.5, got %v", c.Weight)
			}
		}
	}
	if antiCount != 2 {
		t.Errorf("expected 2 anti claims for POLICIES, got %d", antiCount)
	}

	// PRICING is not anti-eligible.
	base2 := []claims.Claim{{Text: "$4200/month", ClaimType: claims.TypePricing, Weight: 1.0}}
	out2 := e.Expand(context.Background(), base2)
	for _, c := range out2 {
		if c.Kind == claims.KindAnti {
			t.Errorf("expected no anti claims for PRICING, got one")
		}
	}
}

func TestExpandSwallowsErrors(t *testing.T) {
	fake := &fakeLLM{err: context.DeadlineExceeded}
	e := New(fake, 4, nil)
	base := []claims.Claim{{Text: "near subway", ClaimType: claims.TypeTransport}}
	out := e.Expand(context.Background(), base)
	if len(out) != 1 {
		t.Fatalf("expected only the base claim to survive, got %d", len(out))
	}
}
