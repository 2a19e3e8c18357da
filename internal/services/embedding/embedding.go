// Package embedding implements the embedding façade (spec §4.6): turning
// claim text into dense vectors for ANN search and dedup. Count or
// dimensionality mismatch is fatal, never best-effort.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/claims"
	"github.com/frenta/claimsearch/internal/resilience"
)

// Task distinguishes the embedding task, per spec §4.6 — some providers
// use different instruction prefixes for documents vs. queries.
type Task string

const (
	TaskRetrievalDocument Task = "retrieval_document"
	TaskRetrievalQuery    Task = "retrieval_query"
)

// Client embeds batches of text into claims.Dimensions-wide vectors.
type Client interface {
	Embed(ctx context.Context, texts []string, task Task) ([][]float32, error)
}

// GoogleConfig configures the Gemini embedding client.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// GoogleClient implements Client against Google's text-embedding API.
type GoogleClient struct {
	cfg        GoogleConfig
	httpClient *http.Client
	breakers   *resilience.Manager
}

// NewGoogleClient constructs a GoogleClient.
func NewGoogleClient(cfg GoogleConfig, breakers *resilience.Manager) *GoogleClient {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	return &GoogleClient{cfg: cfg, httpClient: &http.Client{Timeout: 30 * time.Second}, breakers: breakers}
}

func (c *GoogleClient) Embed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	v, err := c.breakers.Execute(ctx, resilience.BreakerEmbedding, resilience.CircuitBreakerConfig{}, func() (interface{}, error) {
		return c.doEmbed(ctx, texts, task)
	})
	if err != nil {
		return nil, apperrors.Fatal(err, "embedding call failed")
	}
	vectors := v.([][]float32)

	if len(vectors) != len(texts) {
		return nil, apperrors.Fatal(fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)), "embedding count mismatch")
	}
	for _, vec := range vectors {
		if len(vec) != claims.Dimensions {
			return nil, apperrors.Fatal(fmt.Errorf("vector has %d dims, want %d", len(vec), claims.Dimensions), "embedding dimensionality mismatch")
		}
	}
	return vectors, nil
}

func (c *GoogleClient) doEmbed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:batchEmbedContents?key=%s",
		c.cfg.Model, c.cfg.APIKey,
	)

	type request struct {
		Model                string `json:"model"`
		Content              struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		TaskType string `json:"taskType"`
	}
	requests := make([]request, len(texts))
	for i, t := range texts {
		requests[i].Model = "models/" + c.cfg.Model
		requests[i].Content.Parts = []struct {
			Text string `json:"text"`
		}{{Text: t}}
		requests[i].TaskType = string(task)
	}
	body := map[string]interface{}{"requests": requests}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned %d", resp.StatusCode)
	}

	var parsed struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
