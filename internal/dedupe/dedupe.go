// Package dedupe implements claim deduplication (spec §4.2): pairwise
// cosine similarity against every earlier-kept claim, order-stable,
// merging sources of dropped duplicates into the kept claim.
package dedupe

import (
	"math"

	"github.com/frenta/claimsearch/internal/claims"
)

const defaultThreshold = 0.98

// Dedupe drops claims whose embedding is cosine-similar to an
// earlier-kept claim at or above threshold (0 uses the spec default of
// 0.98). The first occurrence of each near-duplicate is kept; its source
// is merged with the dropped duplicate's (text source wins over image;
// otherwise the first image source is kept). Order is stable: surviving
// claims retain their original relative order.
func Dedupe(claimsIn []claims.EmbeddedClaim, threshold float64) []claims.EmbeddedClaim {
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	kept := make([]claims.EmbeddedClaim, 0, len(claimsIn))
	for _, c := range claimsIn {
		dupIndex := -1
		for i, k := range kept {
			if cosineSimilarity(c.Embedding, k.Embedding) >= threshold {
				dupIndex = i
				break
			}
		}
		if dupIndex == -1 {
			kept = append(kept, c)
			continue
		}
		kept[dupIndex].Source = mergeSource(kept[dupIndex].Source, c.Source)
	}
	return kept
}

// mergeSource prefers a text source over an image source; between two
// image sources, the earlier-seen one wins.
func mergeSource(existing, incoming claims.ClaimSource) claims.ClaimSource {
	if existing.Type == claims.SourceText {
		return existing
	}
	if incoming.Type == claims.SourceText {
		return incoming
	}
	return existing
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
