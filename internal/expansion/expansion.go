// Package expansion implements claim expansion (spec §4.4): for each base
// claim, generate derived (synonym/generalization) variants, and anti
// (semantic opposite) variants where the claim type admits one. Fan-out is
// bounded by a semaphore (default 50, per spec §5).
package expansion

import (
	"context"
	"sync"

	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/concurrency"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/services/llm"
)

const (
	derivedWeightFactor = 0.9
	antiWeightFactor    = 0.5
	derivedCount        = 5
	antiCount           = 2
)

// Expander fans claim expansion out across base claims, bounded by a
// semaphore.
type Expander struct {
	llm        llm.Client
	sem        *concurrency.Semaphore
	logger     observability.Logger
}

// New constructs an Expander with the given concurrency bound (0 uses the
// spec default of 50).
func New(llmClient llm.Client, concurrencyLimit int, logger observability.Logger) *Expander {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 50
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Expander{llm: llmClient, sem: concurrency.NewSemaphore(concurrencyLimit), logger: logger}
}

// Expand returns base claims plus every successfully generated derived/anti
// variant. Per-claim expansion failures are logged and swallowed; the base
// claim is always present in the output regardless of expansion outcome.
func (e *Expander) Expand(ctx context.Context, base []claims.Claim) []claims.Claim {
	var mu sync.Mutex
	out := make([]claims.Claim, 0, len(base)*2)
	out = append(out, base...)

	var wg sync.WaitGroup
	for _, c := range base {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.sem.Acquire(ctx); err != nil {
				return
			}
			defer e.sem.Release()

			variants := e.expandOne(ctx, c)
			if len(variants) == 0 {
				return
			}
			mu.Lock()
			out = append(out, variants...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return out
}

func (e *Expander) expandOne(ctx context.Context, c claims.Claim) []claims.Claim {
	var variants []claims.Claim

	derivedTexts, err := e.llm.GenerateVariants(ctx, c.Text, "derived", derivedCount)
	if err != nil {
		e.logger.Warn("derived expansion failed", map[string]interface{}{"claim": c.Text, "error": err.Error()})
	}
	for _, text := range derivedTexts {
		variants = append(variants, claims.Claim{
			Text:       text,
			ClaimType:  c.ClaimType,
			Domain:     c.Domain,
			RoomType:   c.RoomType,
			Kind:       claims.KindDerived,
			IsSpecific: c.IsSpecific,
			HasQuants:  c.HasQuants,
			Negation:   c.Negation,
			FromClaim:  c.Text,
			Weight:     c.Weight * derivedWeightFactor,
			Source:     c.Source,
		})
	}

	if claims.ExpansionEligible(c.ClaimType) {
		antiTexts, err := e.llm.GenerateVariants(ctx, c.Text, "anti", antiCount)
		if err != nil {
			e.logger.Warn("anti expansion failed", map[string]interface{}{"claim": c.Text, "error": err.Error()})
		}
		for _, text := range antiTexts {
			variants = append(variants, claims.Claim{
				Text:       text,
				ClaimType:  c.ClaimType,
				Domain:     c.Domain,
				RoomType:   c.RoomType,
				Kind:       claims.KindAnti,
				IsSpecific: c.IsSpecific,
				HasQuants:  c.HasQuants,
				Negation:   !c.Negation,
				FromClaim:  c.Text,
				Weight:     c.Weight * antiWeightFactor,
				Source:     c.Source,
			})
		}
	}

	return variants
}
