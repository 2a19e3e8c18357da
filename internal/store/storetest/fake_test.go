package storetest

import (
	"context"
	"testing"

	"github.com/frenta/claimsearch/internal/store"
)

func TestFakeIndexAndGet(t *testing.T) {
	f := New()
	ctx := context.Background()

	if err := f.Index(ctx, store.IndexApartments, "A1", store.Doc{"title": "Sunny loft"}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	doc, found, err := f.Get(ctx, store.IndexApartments, "A1")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if doc["title"] != "Sunny loft" {
		t.Errorf("title = %v", doc["title"])
	}

	_, found, _ = f.Get(ctx, store.IndexApartments, "missing")
	if found {
		t.Errorf("expected miss for unknown id")
	}
}

func TestFakeSearchVector(t *testing.T) {
	f := New()
	ctx := context.Background()

	_ = f.Index(ctx, store.IndexRooms, "r1", store.Doc{"claim_vector": []float32{1, 0}, "claim_type": "SIZE"})
	_ = f.Index(ctx, store.IndexRooms, "r2", store.Doc{"claim_vector": []float32{0, 1}, "claim_type": "SIZE"})

	resp, err := f.Search(ctx, store.IndexRooms, store.SearchRequest{
		Vector: &store.VectorQuery{Field: "claim_vector", Vector: []float32{1, 0}, K: 1, NumCandidates: 10},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ID != "r1" {
		t.Fatalf("expected r1 as top hit, got %+v", resp.Hits)
	}
}

func TestFakeSearchFilter(t *testing.T) {
	f := New()
	ctx := context.Background()

	_ = f.Index(ctx, store.IndexApartments, "a1", store.Doc{"claim_type": "PRICING"})
	_ = f.Index(ctx, store.IndexApartments, "a2", store.Doc{"claim_type": "SIZE"})

	resp, err := f.Search(ctx, store.IndexApartments, store.SearchRequest{
		Filter: &store.BoolFilter{Must: []store.TermFilter{{Field: "claim_type", Values: []string{"PRICING"}}}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ID != "a1" {
		t.Fatalf("expected a1 only, got %+v", resp.Hits)
	}
}

func TestFakeDeleteByQuery(t *testing.T) {
	f := New()
	ctx := context.Background()

	_ = f.Index(ctx, store.IndexApartments, "a1", store.Doc{"apartment_id": "A1"})
	_ = f.Index(ctx, store.IndexApartments, "a2", store.Doc{"apartment_id": "A2"})

	n, err := f.DeleteByQuery(ctx, store.IndexApartments, store.BoolFilter{
		Must: []store.TermFilter{{Field: "apartment_id", Values: []string{"A1"}}},
	})
	if err != nil {
		t.Fatalf("DeleteByQuery: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, found, _ := f.Get(ctx, store.IndexApartments, "a1"); found {
		t.Errorf("a1 should be deleted")
	}
	if _, found, _ := f.Get(ctx, store.IndexApartments, "a2"); !found {
		t.Errorf("a2 should remain")
	}
}
