package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/config"
)

const defaultBatchSize = 16

// httpProvider calls an OpenAI-compatible /v1/embeddings endpoint.
type httpProvider struct {
	baseURL   string
	apiKey    string
	model     string
	dim       int
	batchSize int
	client    *http.Client
	logger    *log.Logger
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func newHTTPProvider(cfg config.EmbeddingConfig, logger *log.Logger) (*httpProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing embedding base url")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("missing embedding model")
	}

	timeout := 10 * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &httpProvider{
		baseURL:   baseURL,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		model:     model,
		dim:       cfg.Dimension,
		batchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// Dimension returns the configured dimension, 0 when the backend decides.
func (p *httpProvider) Dimension() int {
	return p.dim
}

func (p *httpProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("embed: empty text")
	}
	vectors, err := p.request(ctx, trimmed, 1)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vectors[0], nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: empty texts")
	}
	normalized := make([]string, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("embed batch: empty text at index %d", i)
		}
		normalized[i] = trimmed
	}

	if len(normalized) <= p.batchSize {
		vectors, err := p.request(ctx, normalized, len(normalized))
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		return vectors, nil
	}

	vectors := make([][]float32, 0, len(normalized))
	for start := 0; start < len(normalized); start += p.batchSize {
		end := start + p.batchSize
		if end > len(normalized) {
			end = len(normalized)
		}
		chunk, err := p.request(ctx, normalized[start:end], end-start)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		vectors = append(vectors, chunk...)
	}
	return vectors, nil
}

func (p *httpProvider) request(ctx context.Context, input any, expected int) ([][]float32, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(embeddingRequest{Model: p.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vectors, err := p.validate(decoded.Data, expected)
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}
	return vectors, nil
}

func (p *httpProvider) validate(data []embeddingData, expected int) ([][]float32, error) {
	if len(data) != expected {
		return nil, fmt.Errorf("response count mismatch: got %d want %d", len(data), expected)
	}

	vectors := make([][]float32, expected)
	seen := make([]bool, expected)
	responseDim := 0

	for _, item := range data {
		if item.Index < 0 || item.Index >= expected {
			return nil, fmt.Errorf("invalid embedding index %d", item.Index)
		}
		if seen[item.Index] {
			return nil, fmt.Errorf("duplicate embedding index %d", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding vector at index %d", item.Index)
		}
		if responseDim == 0 {
			responseDim = len(item.Embedding)
		} else if len(item.Embedding) != responseDim {
			return nil, fmt.Errorf("inconsistent embedding dimension at index %d: got %d want %d", item.Index, len(item.Embedding), responseDim)
		}
		if p.dim > 0 && len(item.Embedding) != p.dim {
			return nil, fmt.Errorf("embedding dimension at index %d: got %d want %d", item.Index, len(item.Embedding), p.dim)
		}

		copied := make([]float32, len(item.Embedding))
		copy(copied, item.Embedding)
		vectors[item.Index] = copied
		seen[item.Index] = true
	}

	for idx, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("missing embedding index %d", idx)
		}
	}
	return vectors, nil
}
