package embedding

import (
	"context"
	"testing"

	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/resilience"
)

func TestEmbedReturnsNilForEmptyInputWithoutCallingProvider(t *testing.T) {
	c := NewGoogleClient(GoogleConfig{}, resilience.NewManager(observability.NewNoopLogger()))
	vectors, err := c.Embed(context.Background(), nil, TaskRetrievalDocument)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for empty input, got %v", vectors)
	}
}

func TestNewGoogleClientDefaultsModel(t *testing.T) {
	c := NewGoogleClient(GoogleConfig{}, resilience.NewManager(observability.NewNoopLogger()))
	if c.cfg.Model != "text-embedding-004" {
		t.Errorf("expected default model text-embedding-004, got %q", c.cfg.Model)
	}
}
