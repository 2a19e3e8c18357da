// Package esstore implements internal/store.Store against Elasticsearch's
// query DSL (bool/terms/range/nested/geo_distance filters, kNN vector
// search, collapse, terms+top_hits+value_count aggregations). Grounded in
// original_source/app/services/elasticsearch_client.py's query shapes; no
// repository in the example pack ships an Elasticsearch client, so this is
// the one out-of-pack dependency the spec requires (see DESIGN.md).
package esstore

import (
	"strconv"

	"github.com/frenta/claimsearch/internal/store"
)

// buildFilterClauses translates a BoolFilter into the DSL's "filter" array
// contents (each element participates in a top-level bool's must/filter).
func buildFilterClauses(f *store.BoolFilter) []map[string]interface{} {
	if f == nil {
		return nil
	}
	var clauses []map[string]interface{}

	for _, t := range f.Must {
		if len(t.Values) == 0 {
			continue
		}
		if len(t.Values) == 1 {
			clauses = append(clauses, map[string]interface{}{
				"term": map[string]interface{}{t.Field: t.Values[0]},
			})
		} else {
			vals := make([]interface{}, len(t.Values))
			for i, v := range t.Values {
				vals[i] = v
			}
			clauses = append(clauses, map[string]interface{}{
				"terms": map[string]interface{}{t.Field: vals},
			})
		}
	}

	if f.MustNotNegation != nil {
		clauses = append(clauses, map[string]interface{}{
			"bool": map[string]interface{}{"must_not": []map[string]interface{}{
				{"term": map[string]interface{}{"negation": *f.MustNotNegation}},
			}},
		})
	}

	for _, r := range f.Range {
		bounds := map[string]interface{}{}
		if r.GTE != nil {
			bounds["gte"] = r.GTE
		}
		if r.LTE != nil {
			bounds["lte"] = r.LTE
		}
		clauses = append(clauses, map[string]interface{}{
			"range": map[string]interface{}{r.Field: bounds},
		})
	}

	for _, n := range f.Nested {
		nestedBool := map[string]interface{}{}
		var inner []map[string]interface{}
		for _, t := range n.Terms {
			inner = append(inner, map[string]interface{}{
				"terms": map[string]interface{}{n.Path + "." + t.Field: t.Values},
			})
		}
		for _, r := range n.Range {
			bounds := map[string]interface{}{}
			if r.GTE != nil {
				bounds["gte"] = r.GTE
			}
			if r.LTE != nil {
				bounds["lte"] = r.LTE
			}
			inner = append(inner, map[string]interface{}{
				"range": map[string]interface{}{n.Path + "." + r.Field: bounds},
			})
		}
		nestedBool["filter"] = inner
		clauses = append(clauses, map[string]interface{}{
			"nested": map[string]interface{}{
				"path":  n.Path,
				"query": map[string]interface{}{"bool": nestedBool},
			},
		})
	}

	for _, e := range f.Exists {
		existsClause := map[string]interface{}{
			"exists": map[string]interface{}{"field": e.Field},
		}
		if e.Negate {
			existsClause = map[string]interface{}{
				"bool": map[string]interface{}{"must_not": []map[string]interface{}{existsClause}},
			}
		}
		clauses = append(clauses, existsClause)
	}

	if f.GeoDistance != nil {
		g := f.GeoDistance
		clauses = append(clauses, map[string]interface{}{
			"geo_distance": map[string]interface{}{
				"distance": formatMeters(g.RadiusMeters),
				g.Field:    map[string]interface{}{"lat": g.CenterLat, "lon": g.CenterLon},
			},
		})
	}

	return clauses
}

func formatMeters(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64) + "m"
}

// buildSearchBody builds the full ES _search request body for req.
func buildSearchBody(req store.SearchRequest) map[string]interface{} {
	body := map[string]interface{}{}

	if req.Size > 0 {
		body["size"] = req.Size
	}
	if req.From > 0 {
		body["from"] = req.From
	}

	filterClauses := buildFilterClauses(req.Filter)

	if req.Vector != nil {
		knn := map[string]interface{}{
			"field":          req.Vector.Field,
			"query_vector":   req.Vector.Vector,
			"k":              req.Vector.K,
			"num_candidates": req.Vector.NumCandidates,
		}
		if len(filterClauses) > 0 {
			knn["filter"] = map[string]interface{}{"bool": map[string]interface{}{"filter": filterClauses}}
		}
		body["knn"] = knn
	} else if len(filterClauses) > 0 {
		boolQuery := map[string]interface{}{"filter": filterClauses}
		if req.Filter.MinimumShouldMatch > 0 {
			boolQuery["minimum_should_match"] = req.Filter.MinimumShouldMatch
		}
		body["query"] = map[string]interface{}{"bool": boolQuery}
	} else {
		body["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	if req.Collapse != "" {
		body["collapse"] = map[string]interface{}{"field": req.Collapse}
	}

	if len(req.Aggregations) > 0 {
		aggs := map[string]interface{}{}
		for _, a := range req.Aggregations {
			size := a.Size
			if size <= 0 {
				size = 10
			}
			terms := map[string]interface{}{
				"terms": map[string]interface{}{"field": a.Field, "size": size},
			}
			sub := map[string]interface{}{}
			if a.TopHits > 0 {
				sub["top_hits_agg"] = map[string]interface{}{"top_hits": map[string]interface{}{"size": a.TopHits}}
			}
			if a.ValueCount != "" {
				sub["value_count_agg"] = map[string]interface{}{"value_count": map[string]interface{}{"field": a.ValueCount}}
			}
			if len(sub) > 0 {
				terms["aggs"] = sub
			}
			aggs[a.Name] = terms
		}
		body["aggs"] = aggs
	}

	return body
}

