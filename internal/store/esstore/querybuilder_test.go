package esstore

import (
	"testing"

	"github.com/frenta/claimsearch/internal/store"
)

func TestFormatMeters(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0m"},
		{500, "500m"},
		{804.5, "804.5m"},
	}
	for _, c := range cases {
		if got := formatMeters(c.in); got != c.want {
			t.Errorf("formatMeters(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBuildFilterClausesTerm(t *testing.T) {
	f := &store.BoolFilter{Must: []store.TermFilter{{Field: "claim_type", Values: []string{"PRICING"}}}}
	clauses := buildFilterClauses(f)
	if len(clauses) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(clauses))
	}
	term, ok := clauses[0]["term"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected term clause, got %v", clauses[0])
	}
	if term["claim_type"] != "PRICING" {
		t.Errorf("term value = %v", term["claim_type"])
	}
}

func TestBuildFilterClausesTerms(t *testing.T) {
	f := &store.BoolFilter{Must: []store.TermFilter{{Field: "claim_type", Values: []string{"PRICING", "SIZE"}}}}
	clauses := buildFilterClauses(f)
	if len(clauses) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(clauses))
	}
	if _, ok := clauses[0]["terms"]; !ok {
		t.Fatalf("expected terms clause, got %v", clauses[0])
	}
}

func TestBuildFilterClausesGeoDistance(t *testing.T) {
	f := &store.BoolFilter{
		GeoDistance: &store.GeoDistanceFilter{
			Field: "apartment_location", CenterLat: 40.7, CenterLon: -74.0, RadiusMeters: 1000,
		},
	}
	clauses := buildFilterClauses(f)
	if len(clauses) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(clauses))
	}
	geo, ok := clauses[0]["geo_distance"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected geo_distance clause, got %v", clauses[0])
	}
	if geo["distance"] != "1000m" {
		t.Errorf("distance = %v", geo["distance"])
	}
}

func TestBuildSearchBodyVector(t *testing.T) {
	req := store.SearchRequest{
		Vector: &store.VectorQuery{Field: "claim_vector", Vector: []float32{0.1, 0.2}, K: 10, NumCandidates: 100},
		Size:   10,
	}
	body := buildSearchBody(req)
	knn, ok := body["knn"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected knn clause, got %v", body)
	}
	if knn["k"] != 10 {
		t.Errorf("k = %v", knn["k"])
	}
	if body["size"] != 10 {
		t.Errorf("size = %v", body["size"])
	}
}

func TestBuildSearchBodyMatchAll(t *testing.T) {
	body := buildSearchBody(store.SearchRequest{})
	query, ok := body["query"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected query clause, got %v", body)
	}
	if _, ok := query["match_all"]; !ok {
		t.Errorf("expected match_all, got %v", query)
	}
}

func TestBuildSearchBodyAggregations(t *testing.T) {
	req := store.SearchRequest{
		Aggregations: []store.Aggregation{{Name: "by_apartment", Field: "apartment_id", Size: 5, TopHits: 1}},
	}
	body := buildSearchBody(req)
	aggs, ok := body["aggs"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected aggs, got %v", body)
	}
	if _, ok := aggs["by_apartment"]; !ok {
		t.Errorf("expected by_apartment bucket, got %v", aggs)
	}
}
