package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/store"
	"github.com/frenta/claimsearch/internal/store/storetest"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(Config{}, storetest.New(), nil, nil, observability.NewNoopLogger())
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSetupHandlerCreatesIndices(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/setup", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIndexHandlerRejectsMalformedBody(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/index", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestGetApartmentNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/apartments/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetApartmentGroupsClaimsAndCountsKinds(t *testing.T) {
	fake := storetest.New()
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{}, fake, nil, nil, observability.NewNoopLogger())

	ctx := context.Background()
	_ = fake.Index(ctx, store.IndexApartments, "apt-1_claim_0", store.Doc{
		"apartment_id": "apt-1", "address": "123 Main St", "title": "Sunny 2BR", "kind": "base",
	})
	_ = fake.Index(ctx, store.IndexApartments, "apt-1_claim_1", store.Doc{
		"apartment_id": "apt-1", "claim": "pet friendly", "kind": "verified",
	})
	_ = fake.Index(ctx, store.IndexRooms, "apt-1_room_0", store.Doc{
		"apartment_id": "apt-1", "claim": "bedroom has a walk-in closet", "kind": "derived",
	})

	req := httptest.NewRequest(http.MethodGet, "/apartments/apt-1", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["address"] != "123 Main St" || body["title"] != "Sunny 2BR" {
		t.Errorf("expected canonical doc fields to be present, got %+v", body)
	}
	if body["base_claims"].(float64) != 1 || body["verified_claims"].(float64) != 1 || body["derived_claims"].(float64) != 1 {
		t.Errorf("expected base=1 verified=1 derived=1, got base=%v verified=%v derived=%v", body["base_claims"], body["verified_claims"], body["derived_claims"])
	}
	allClaims, ok := body["claims"].([]interface{})
	if !ok || len(allClaims) != 3 {
		t.Fatalf("expected 3 flattened claims tagged with their domain, got %+v", body["claims"])
	}
	domains := map[string]int{}
	for _, c := range allClaims {
		claim, ok := c.(map[string]interface{})
		if !ok {
			t.Fatalf("expected each claim to be an object, got %+v", c)
		}
		domain, _ := claim["domain"].(string)
		domains[domain]++
	}
	if domains["apartment"] != 2 || domains["room"] != 1 {
		t.Errorf("expected 2 apartment-domain and 1 room-domain claim, got %+v", domains)
	}
}

func TestListApartmentsAppliesPaginationAndHasImagesFilter(t *testing.T) {
	fake := storetest.New()
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{}, fake, nil, nil, observability.NewNoopLogger())

	ctx := context.Background()
	_ = fake.Index(ctx, store.IndexApartments, "apt-1_claim_0", store.Doc{"apartment_id": "apt-1", "image_urls": []string{"https://example.com/a.jpg"}})
	_ = fake.Index(ctx, store.IndexApartments, "apt-2_claim_0", store.Doc{"apartment_id": "apt-2"})

	req := httptest.NewRequest(http.MethodGet, "/apartments?has_images=true", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["total"].(float64) != 1 {
		t.Errorf("expected has_images=true to filter down to the 1 listing with image_urls, got total=%v", body["total"])
	}

	badReq := httptest.NewRequest(http.MethodGet, "/apartments?page_size=500", nil)
	badW := httptest.NewRecorder()
	s.router.ServeHTTP(badW, badReq)
	if badW.Code != http.StatusBadRequest {
		t.Errorf("expected page_size=500 to be rejected as out of [1,100] range, got %d", badW.Code)
	}
}
