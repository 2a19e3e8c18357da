// Package quantifier implements quantifier extraction (spec §4.5): parsing
// numeric predicates out of claim text and templatizing the text so
// embeddings aren't skewed by the specific literal value. Extraction is
// regex-rule-based per quantifier type, not LLM-based, matching the
// system's intent that numeric comparisons must never be heuristically
// inferred from model output (spec §9).
package quantifier

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/concurrency"
	"github.com/frenta/claimsearch/internal/observability"
)

const metersPerWalkingMinute = 80.0

var (
	countPattern = regexp.MustCompile(`(?i)(\d+)\s*\+?\s*(bedroom|bathroom|bed|bath)s?`)
	studioPattern = regexp.MustCompile(`(?i)\bstudio\b`)
	atLeastPattern = regexp.MustCompile(`(?i)at least|\d\+|\+\s*$`)

	moneyPattern   = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`)
	areaPattern    = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(sq\s?ft|sqft|square feet|m2|m²|sq\s?m)`)
	durationPattern = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(month|year|week|day)s?`)
	walkingPattern = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*min(?:ute)?s?\s*(?:walk|on foot|walking)`)
	distanceMetersPattern = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(meters?|m\b)`)

	underPattern = regexp.MustCompile(`(?i)under\s+\$?([\d,]+(?:\.\d+)?)`)
	overPattern  = regexp.MustCompile(`(?i)(?:over|at least)\s+\$?([\d,]+(?:\.\d+)?)`)
)

// Extractor parses quantifiers out of claim text, bounded by a semaphore
// (default 30, per spec §5).
type Extractor struct {
	sem    *concurrency.Semaphore
	logger observability.Logger
}

// New constructs an Extractor. concurrencyLimit <= 0 uses the spec default
// of 30.
func New(concurrencyLimit int, logger observability.Logger) *Extractor {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 30
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Extractor{sem: concurrency.NewSemaphore(concurrencyLimit), logger: logger}
}

// Extract enriches every claim whose HasQuants is true with parsed
// quantifiers and a templatized text form. A parse failure for one claim
// leaves its text unchanged and its quantifier list empty (spec §4.5,
// §7 "validation failure").
func (e *Extractor) Extract(ctx context.Context, input []claims.Claim) []claims.Claim {
	out := make([]claims.Claim, len(input))
	copy(out, input)

	var wg sync.WaitGroup
	for i, c := range out {
		if !c.HasQuants {
			continue
		}
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.sem.Acquire(ctx); err != nil {
				return
			}
			defer e.sem.Release()

			quants, templated := parseQuantifiers(c.Text)
			out[i].Quantifiers = quants
			if templated != "" {
				out[i].Text = templated
			}
		}()
	}
	wg.Wait()
	return out
}

func parseFloat(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseQuantifiers applies every rule to text and returns the matched
// quantifiers plus the templatized form (non-count numeric literals
// replaced with VAR_n placeholders).
func parseQuantifiers(text string) ([]claims.Quantifier, string) {
	var quants []claims.Quantifier
	templated := text
	varIndex := 1

	if studioPattern.MatchString(text) {
		quants = append(quants, claims.Quantifier{
			QType: claims.QuantCount, Noun: "bedroom", VMin: 1, VMax: 1, Op: claims.OpEquals,
		})
	}

	for _, m := range countPattern.FindAllStringSubmatch(text, -1) {
		n := parseFloat(m[1])
		op := claims.OpEquals
		vmax := n
		if atLeastPattern.MatchString(text) {
			op = claims.OpGTE
			vmax = claims.InfiniteBoundSentinel
		}
		quants = append(quants, claims.Quantifier{
			QType: claims.QuantCount, Noun: strings.ToLower(m[2]), VMin: n, VMax: vmax, Op: op,
		})
		// Counts are never templatized: they remain literal for equality
		// indexing (spec §4.5).
	}

	if m := underPattern.FindStringSubmatch(text); m != nil {
		v := parseFloat(m[1])
		quants = append(quants, claims.Quantifier{QType: claims.QuantMoney, Noun: "price", VMin: 0, VMax: v, Op: claims.OpLTE, Unit: "usd"})
		templated, varIndex = templatize(templated, m[1], varIndex)
	} else if m := overPattern.FindStringSubmatch(text); m != nil {
		v := parseFloat(m[1])
		quants = append(quants, claims.Quantifier{QType: claims.QuantMoney, Noun: "price", VMin: v, VMax: claims.InfiniteBoundSentinel, Op: claims.OpGTE, Unit: "usd"})
		templated, varIndex = templatize(templated, m[1], varIndex)
	} else if m := moneyPattern.FindStringSubmatch(text); m != nil {
		v := parseFloat(m[1])
		quants = append(quants, claims.Quantifier{QType: claims.QuantMoney, Noun: "price", VMin: v, VMax: v, Op: claims.OpEquals, Unit: "usd"})
		templated, varIndex = templatize(templated, m[1], varIndex)
	}

	if m := areaPattern.FindStringSubmatch(text); m != nil {
		v := parseFloat(m[1])
		unit := normalizeAreaUnit(m[2])
		quants = append(quants, claims.Quantifier{QType: claims.QuantArea, Noun: "area", VMin: v, VMax: v, Op: claims.OpEquals, Unit: unit})
		templated, varIndex = templatize(templated, m[1], varIndex)
	}

	if m := walkingPattern.FindStringSubmatch(text); m != nil {
		minutes := parseFloat(m[1])
		meters := minutes * metersPerWalkingMinute
		quants = append(quants, claims.Quantifier{QType: claims.QuantDistance, Noun: "distance", VMin: meters, VMax: meters, Op: claims.OpApprox, Unit: "meters"})
		templated, varIndex = templatize(templated, m[1], varIndex)
	} else if m := distanceMetersPattern.FindStringSubmatch(text); m != nil {
		v := parseFloat(m[1])
		quants = append(quants, claims.Quantifier{QType: claims.QuantDistance, Noun: "distance", VMin: v, VMax: v, Op: claims.OpEquals, Unit: "meters"})
		templated, varIndex = templatize(templated, m[1], varIndex)
	}

	if m := durationPattern.FindStringSubmatch(text); m != nil {
		v := parseFloat(m[1])
		unit := strings.ToLower(m[2])
		op := claims.OpEquals
		vmax := v
		if atLeastPattern.MatchString(text) || strings.Contains(strings.ToLower(text), "minimum") {
			op = claims.OpGTE
			vmax = claims.InfiniteBoundSentinel
		}
		quants = append(quants, claims.Quantifier{QType: claims.QuantDuration, Noun: unit, VMin: v, VMax: vmax, Op: op, Unit: unit})
		templated, _ = templatize(templated, m[1], varIndex)
	}

	if templated == text {
		return quants, ""
	}
	return quants, templated
}

func normalizeAreaUnit(raw string) string {
	lower := strings.ToLower(strings.ReplaceAll(raw, " ", ""))
	switch lower {
	case "sqft", "squarefeet":
		return "sqft"
	default:
		return "m2"
	}
}

// templatize replaces the first occurrence of literal in text with the next
// VAR_n placeholder.
func templatize(text string, literal string, varIndex int) (string, int) {
	placeholder := "VAR_" + strconv.Itoa(varIndex)
	replaced := strings.Replace(text, literal, placeholder, 1)
	return replaced, varIndex + 1
}
