// Package storetest provides an in-memory store.Store fake for pipeline
// unit tests, so indexing and search pipeline tests don't need a live
// Elasticsearch cluster.
package storetest

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/frenta/claimsearch/internal/store"
)

// Fake is a minimal in-memory implementation of store.Store. It supports
// exact-match term/negation/range filtering and brute-force cosine-similarity
// vector search, which is enough behavioral fidelity for pipeline tests
// without reimplementing Elasticsearch.
type Fake struct {
	mu   sync.Mutex
	docs map[store.Index]map[string]store.Doc
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{docs: make(map[store.Index]map[string]store.Doc)}
}

func (f *Fake) bucket(index store.Index) map[string]store.Doc {
	b, ok := f.docs[index]
	if !ok {
		b = make(map[string]store.Doc)
		f.docs[index] = b
	}
	return b
}

func (f *Fake) Index(_ context.Context, index store.Index, id string, doc store.Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucket(index)[id] = doc
	return nil
}

func (f *Fake) BulkIndex(_ context.Context, index store.Index, docs map[string]store.Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bucket(index)
	for id, doc := range docs {
		b[id] = doc
	}
	return nil
}

func (f *Fake) Get(_ context.Context, index store.Index, id string) (store.Doc, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.bucket(index)[id]
	return doc, ok, nil
}

func (f *Fake) MGet(_ context.Context, index store.Index, ids []string) ([]store.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bucket(index)
	var hits []store.SearchHit
	for _, id := range ids {
		if doc, ok := b[id]; ok {
			hits = append(hits, store.SearchHit{ID: id, Source: doc})
		}
	}
	return hits, nil
}

func (f *Fake) Search(_ context.Context, index store.Index, req store.SearchRequest) (store.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hits []store.SearchHit
	for id, doc := range f.bucket(index) {
		if req.Filter != nil && !matchesFilter(doc, req.Filter) {
			continue
		}
		score := 1.0
		if req.Vector != nil {
			vec, ok := vectorField(doc, req.Vector.Field)
			if !ok {
				continue
			}
			score = cosineSimilarity(req.Vector.Vector, vec)
		}
		hits = append(hits, store.SearchHit{ID: id, Score: score, Source: doc})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if req.Collapse != "" {
		hits = collapse(hits, req.Collapse)
	}

	total := len(hits)
	if req.Vector != nil && req.Vector.K > 0 && len(hits) > req.Vector.K {
		hits = hits[:req.Vector.K]
	}
	if req.Size > 0 {
		from := req.From
		if from > len(hits) {
			from = len(hits)
		}
		end := from + req.Size
		if end > len(hits) {
			end = len(hits)
		}
		hits = hits[from:end]
	}

	resp := store.SearchResponse{Hits: hits, Total: total}
	if len(req.Aggregations) > 0 {
		resp.Aggregations = buildAggregations(f.bucket(index), req.Aggregations)
	}
	return resp, nil
}

func (f *Fake) DeleteByQuery(_ context.Context, index store.Index, filter store.BoolFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bucket(index)
	var toDelete []string
	for id, doc := range b {
		if matchesFilter(doc, &filter) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(b, id)
	}
	return len(toDelete), nil
}

func (f *Fake) Refresh(_ context.Context, _ ...store.Index) error { return nil }

func (f *Fake) EnsureIndices(_ context.Context) error { return nil }

func matchesFilter(doc store.Doc, f *store.BoolFilter) bool {
	for _, t := range f.Must {
		v, ok := doc[t.Field]
		if !ok {
			return false
		}
		if !containsValue(t.Values, v) {
			return false
		}
	}
	if f.MustNotNegation != nil {
		if neg, ok := doc["negation"].(bool); ok && neg == *f.MustNotNegation {
			return false
		}
	}
	for _, r := range f.Range {
		v, ok := numericField(doc, r.Field)
		if !ok {
			return false
		}
		if r.GTE != nil && v < toFloat(r.GTE) {
			return false
		}
		if r.LTE != nil && v > toFloat(r.LTE) {
			return false
		}
	}
	for _, e := range f.Exists {
		if fieldExists(doc, e.Field) == e.Negate {
			return false
		}
	}
	return true
}

// fieldExists reports whether field is present with at least one non-empty
// value, matching Elasticsearch's "exists" query semantics for arrays.
func fieldExists(doc store.Doc, field string) bool {
	v, ok := doc[field]
	if !ok || v == nil {
		return false
	}
	switch vals := v.(type) {
	case []string:
		return len(vals) > 0
	case []interface{}:
		return len(vals) > 0
	default:
		return true
	}
}

func containsValue(values []string, v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, want := range values {
		if want == s {
			return true
		}
	}
	return false
}

func numericField(doc store.Doc, field string) (float64, bool) {
	v, ok := doc[field]
	if !ok {
		return 0, false
	}
	return toFloat(v), true
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func vectorField(doc store.Doc, field string) ([]float32, bool) {
	v, ok := doc[field]
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float32)
	return vec, ok
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

func collapse(hits []store.SearchHit, field string) []store.SearchHit {
	seen := make(map[interface{}]bool)
	var out []store.SearchHit
	for _, h := range hits {
		key := h.Source[field]
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

func buildAggregations(docs map[string]store.Doc, aggs []store.Aggregation) map[string][]store.AggregationBucket {
	result := make(map[string][]store.AggregationBucket, len(aggs))
	for _, a := range aggs {
		buckets := make(map[string]*store.AggregationBucket)
		var order []string
		for _, doc := range docs {
			key, ok := doc[a.Field].(string)
			if !ok {
				continue
			}
			b, exists := buckets[key]
			if !exists {
				b = &store.AggregationBucket{Key: key}
				buckets[key] = b
				order = append(order, key)
			}
			b.Count++
			if a.TopHits > 0 && len(b.TopHits) < a.TopHits {
				b.TopHits = append(b.TopHits, store.SearchHit{Source: doc})
			}
		}
		sort.Strings(order)
		var out []store.AggregationBucket
		for _, k := range order {
			out = append(out, *buckets[k])
		}
		if a.Size > 0 && len(out) > a.Size {
			out = out[:a.Size]
		}
		result[a.Name] = out
	}
	return result
}
