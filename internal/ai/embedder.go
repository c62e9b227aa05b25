package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"finbot/pkg/config"
)

// Embedder requests embedding vectors for transaction descriptions from an
// OpenAI-compatible endpoint. Embeddings power later similarity search and
// are strictly best-effort: callers must tolerate failure.
type Embedder struct {
	config     *config.EmbeddingConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) *Embedder {
	return &Embedder{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	requestBody := map[string]interface{}{
		"model": e.config.Model,
		"input": texts,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.config.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embeddingResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	vectors := make([][]float32, len(embeddingResp.Data))
	for i, d := range embeddingResp.Data {
		vectors[i] = d.Embedding
	}

	e.logger.Debug("Embeddings generated", zap.Int("count", len(vectors)))
	return vectors, nil
}
