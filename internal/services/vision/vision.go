// Package vision implements the vision façade (spec §4.8 step 1): producing
// a text description of an image when the caller didn't supply a
// precomputed one, subject to a sliding-window rate limit (spec §5).
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/resilience"
)

// Client describes one image per call.
type Client interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// GoogleConfig configures the Gemini vision client.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// GoogleClient implements Client against Gemini's multimodal API, gated by
// a sliding-window limiter at 150 requests/60s (spec §5) and a circuit
// breaker.
type GoogleClient struct {
	cfg        GoogleConfig
	httpClient *http.Client
	breakers   *resilience.Manager
	limiter    *resilience.SlidingWindowLimiter
}

// NewGoogleClient constructs a GoogleClient. limiter is shared across all
// callers of the vision service (spec §5: "callers block inside the
// limiter until admission, under a single mutex").
func NewGoogleClient(cfg GoogleConfig, breakers *resilience.Manager, limiter *resilience.SlidingWindowLimiter) *GoogleClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GoogleClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breakers:   breakers,
		limiter:    limiter,
	}
}

func (c *GoogleClient) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperrors.Transient(err, "vision rate limit wait cancelled")
	}

	v, err := c.breakers.Execute(ctx, resilience.BreakerVision, resilience.CircuitBreakerConfig{}, func() (interface{}, error) {
		return c.doDescribe(ctx, imageURL)
	})
	if err != nil {
		return "", apperrors.Transient(err, "vision call failed for %s", imageURL)
	}
	return v.(string), nil
}

func (c *GoogleClient) doDescribe(ctx context.Context, imageURL string) (string, error) {
	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		c.cfg.Model, c.cfg.APIKey,
	)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": "Describe this rental listing photo factually: rooms, fixtures, condition, visible amenities."},
					{"file_data": map[string]interface{}{"file_uri": imageURL}},
				},
			},
		},
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision API returned %d", resp.StatusCode)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty vision response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
