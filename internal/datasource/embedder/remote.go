// Package embedder provides Embedder adapters: a remote TEI/OpenAI-style
// HTTP provider and a local fastembed-go provider, selected by the data
// source's configured provider ID.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteConfig configures the HTTP embedding provider.
type RemoteConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Remote is an Embedder backed by a TEI-compatible HTTP embed endpoint.
type Remote struct {
	config RemoteConfig
	client *http.Client
	size   int
}

// NewRemote constructs a Remote embedder. size is the model's known
// embedding dimension, since TEI's /embed response carries no metadata
// describing it.
func NewRemote(cfg RemoteConfig, size int) *Remote {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Remote{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		size:   size,
	}
}

type teiRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

// Embed requests a single embedding for text from the configured endpoint.
func (r *Remote) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned no vectors")
	}
	return vectors[0], nil
}

// EmbeddingSize returns the configured model dimension.
func (r *Remote) EmbeddingSize() int {
	return r.size
}
