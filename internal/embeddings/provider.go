// Package embeddings turns text into fixed-length numeric vectors for the
// warm tier. Providers must be deterministic for identical input; the engine
// never retries a failed call itself.
package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/config"
)

// Provider maps text to fixed-dimension float vectors.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// New selects a provider from configuration.
func New(cfg config.EmbeddingConfig, logger *log.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "hash":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 128
		}
		return NewHashProvider(dim), nil
	case "api":
		return newHTTPProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}

// HashProvider generates deterministic pseudo-embeddings from a SHA-256 text
// digest. No external calls; suitable for tests and offline operation.
type HashProvider struct {
	dim int
}

// NewHashProvider returns a hash provider with the given dimension.
func NewHashProvider(dim int) *HashProvider {
	return &HashProvider{dim: dim}
}

// Dimension returns the embedding dimension.
func (p *HashProvider) Dimension() int {
	return p.dim
}

// Embed generates a unit-normalized pseudo-embedding from the text hash.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, p.dim)
	for i := range vec {
		b := digest[i%len(digest)]
		vec[i] = float32(b)/127.5 - 1.0
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text independently.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: empty texts")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch index %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
