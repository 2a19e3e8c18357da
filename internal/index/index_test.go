package index

import (
	"context"
	"testing"

	"github.com/frenta/claimsearch/internal/chunking"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/expansion"
	"github.com/frenta/claimsearch/internal/ground"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/quantifier"
	"github.com/frenta/claimsearch/internal/services/embedding"
	"github.com/frenta/claimsearch/internal/services/llm"
	"github.com/frenta/claimsearch/internal/store"
	"github.com/frenta/claimsearch/internal/store/storetest"
)

type fakeLLM struct {
	llm.Client
	claimsToReturn  []claims.Claim
	structuredProps llm.StructuredProperties
}

func (f *fakeLLM) ExtractClaims(_ context.Context, text string, _ string) ([]claims.Claim, error) {
	return append([]claims.Claim{}, f.claimsToReturn...), nil
}

func (f *fakeLLM) ExtractStructuredProperties(_ context.Context, _ string) (llm.StructuredProperties, error) {
	return f.structuredProps, nil
}

func (f *fakeLLM) GenerateSummary(_ context.Context, _ string, _ []string) (string, error) {
	return "a lovely apartment", nil
}

func (f *fakeLLM) GenerateTitle(_ context.Context, _ string) (string, error) {
	return "Sunny 2BR", nil
}

func (f *fakeLLM) GenerateLocationSummary(_ context.Context, _ string, _ claims.LatLng) (string, error) {
	return "close to transit", nil
}

func (f *fakeLLM) GenerateVariants(_ context.Context, _ string, _ string, _ int) ([]string, error) {
	return nil, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string, _ embedding.Task) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, claims.Dimensions)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, nil
}

func TestProcessIndexesApartmentClaims(t *testing.T) {
	fl := &fakeLLM{claimsToReturn: []claims.Claim{
		{Text: "walk-in closet", ClaimType: claims.TypeFeatures, Kind: claims.KindBase, Weight: 1.0, Source: claims.ClaimSource{Type: claims.SourceText}},
	}}
	fakeStore := storetest.New()

	p := &Pipeline{
		Chunker:    chunking.New(chunking.Config{}),
		LLM:        fl,
		Embedder:   fakeEmbedder{},
		Vision:     nil,
		Geocoder:   nil,
		Grounder:   ground.New(ground.Config{Enabled: false}, fl, observability.NewNoopLogger()),
		Expander:   expansion.New(fl, 4, observability.NewNoopLogger()),
		Quantifier: quantifier.New(4, observability.NewNoopLogger()),
		Store:      fakeStore,
		Logger:     observability.NewNoopLogger(),
	}

	summary, err := p.Process(context.Background(), Request{
		ApartmentID:    "apt-1",
		RawDescription: "Spacious unit with a walk-in closet.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ApartmentClaims == 0 {
		t.Fatalf("expected at least one apartment claim written, got %+v", summary)
	}

	resp, err := fakeStore.Search(context.Background(), store.IndexApartments, store.SearchRequest{Size: 10})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(resp.Hits) == 0 {
		t.Errorf("expected apartment documents in the fake store")
	}
}

func TestProcessCallerRentPriceWinsOverExtracted(t *testing.T) {
	extracted := 1000.0
	fl := &fakeLLM{
		claimsToReturn:  []claims.Claim{{Text: "walk-in closet", ClaimType: claims.TypeFeatures, Kind: claims.KindBase, Weight: 1.0, Source: claims.ClaimSource{Type: claims.SourceText}}},
		structuredProps: llm.StructuredProperties{RentPrice: &extracted},
	}
	fakeStore := storetest.New()

	p := &Pipeline{
		Chunker:    chunking.New(chunking.Config{}),
		LLM:        fl,
		Embedder:   fakeEmbedder{},
		Grounder:   ground.New(ground.Config{Enabled: false}, fl, observability.NewNoopLogger()),
		Expander:   expansion.New(fl, 4, observability.NewNoopLogger()),
		Quantifier: quantifier.New(4, observability.NewNoopLogger()),
		Store:      fakeStore,
		Logger:     observability.NewNoopLogger(),
	}

	callerRent := 2500.0
	_, err := p.Process(context.Background(), Request{
		ApartmentID:    "apt-1",
		RawDescription: "Spacious unit with a walk-in closet.",
		RentPrice:      &callerRent,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, found, err := fakeStore.Get(context.Background(), store.IndexApartments, claims.CanonicalClaimDocID("apt-1"))
	if err != nil || !found {
		t.Fatalf("expected canonical apartment doc, found=%v err=%v", found, err)
	}
	if doc["rent_price"] != callerRent {
		t.Errorf("expected caller-supplied rent_price %v to win over extracted %v, got %v", callerRent, extracted, doc["rent_price"])
	}
}

func TestProcessCallerTitleSuppressesGeneration(t *testing.T) {
	fl := &fakeLLM{claimsToReturn: []claims.Claim{
		{Text: "walk-in closet", ClaimType: claims.TypeFeatures, Kind: claims.KindBase, Weight: 1.0, Source: claims.ClaimSource{Type: claims.SourceText}},
	}}
	fakeStore := storetest.New()

	p := &Pipeline{
		Chunker:    chunking.New(chunking.Config{}),
		LLM:        fl,
		Embedder:   fakeEmbedder{},
		Grounder:   ground.New(ground.Config{Enabled: false}, fl, observability.NewNoopLogger()),
		Expander:   expansion.New(fl, 4, observability.NewNoopLogger()),
		Quantifier: quantifier.New(4, observability.NewNoopLogger()),
		Store:      fakeStore,
		Logger:     observability.NewNoopLogger(),
	}

	_, err := p.Process(context.Background(), Request{
		ApartmentID:    "apt-1",
		RawDescription: "Spacious unit with a walk-in closet.",
		Title:          "Caller-supplied title",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, found, err := fakeStore.Get(context.Background(), store.IndexApartments, claims.CanonicalClaimDocID("apt-1"))
	if err != nil || !found {
		t.Fatalf("expected canonical apartment doc, found=%v err=%v", found, err)
	}
	if doc["title"] != "Caller-supplied title" {
		t.Errorf("expected caller-supplied title to be preserved and never overwritten by generation, got %v", doc["title"])
	}
}

func TestProcessRequiresApartmentID(t *testing.T) {
	p := &Pipeline{Logger: observability.NewNoopLogger()}
	_, err := p.Process(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error for missing apartment_id")
	}
}
