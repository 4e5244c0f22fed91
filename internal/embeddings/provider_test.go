package embeddings

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/config"
)

func TestHashProviderIsDeterministic(t *testing.T) {
	t.Parallel()
	p := NewHashProvider(128)

	a, err := p.Embed(context.Background(), "the user's favorite color is blue")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := p.Embed(context.Background(), "the user's favorite color is blue")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(a) != 128 {
		t.Fatalf("dimension = %d, want 128", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashProviderUnitNorm(t *testing.T) {
	t.Parallel()
	p := NewHashProvider(64)
	vec, err := p.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Fatalf("norm = %v, want 1.0", math.Sqrt(sum))
	}
}

func TestHashProviderRejectsEmptyText(t *testing.T) {
	t.Parallel()
	p := NewHashProvider(16)
	if _, err := p.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestHashProviderBatch(t *testing.T) {
	t.Parallel()
	p := NewHashProvider(32)
	got, err := p.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("EmbedBatch() returned %d vectors, want 2", len(got))
	}

	single, _ := p.Embed(context.Background(), "one")
	for i := range single {
		if single[i] != got[0][i] {
			t.Fatal("batch embedding differs from single embedding")
		}
	}
}

func TestNewSelectsProvider(t *testing.T) {
	t.Parallel()
	logger := log.NewWithOptions(io.Discard, log.Options{})

	p, err := New(config.EmbeddingConfig{Provider: "hash", Dimension: 8}, logger)
	if err != nil {
		t.Fatalf("New(hash) error = %v", err)
	}
	if p.Dimension() != 8 {
		t.Fatalf("Dimension() = %d, want 8", p.Dimension())
	}

	if _, err := New(config.EmbeddingConfig{Provider: "quantum"}, logger); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestHTTPProviderRoundTrip(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := embeddingResponse{Data: []embeddingData{
			{Index: 0, Embedding: []float32{0.1, 0.2, 0.3}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	logger := log.NewWithOptions(io.Discard, log.Options{})
	p, err := New(config.EmbeddingConfig{
		Provider: "api",
		BaseURL:  srv.URL,
		Model:    "test-embed",
	}, logger)
	if err != nil {
		t.Fatalf("New(api) error = %v", err)
	}

	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("embedding length = %d, want 3", len(vec))
	}
}

func TestHTTPProviderDimensionValidation(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := embeddingResponse{Data: []embeddingData{
			{Index: 0, Embedding: []float32{0.1, 0.2}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	logger := log.NewWithOptions(io.Discard, log.Options{})
	p, err := New(config.EmbeddingConfig{
		Provider:  "api",
		BaseURL:   srv.URL,
		Model:     "test-embed",
		Dimension: 3,
	}, logger)
	if err != nil {
		t.Fatalf("New(api) error = %v", err)
	}

	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected dimension validation error")
	}
}

func TestHTTPProviderPropagatesServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	logger := log.NewWithOptions(io.Discard, log.Options{})
	p, err := New(config.EmbeddingConfig{Provider: "api", BaseURL: srv.URL, Model: "m"}, logger)
	if err != nil {
		t.Fatalf("New(api) error = %v", err)
	}
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected propagated provider failure")
	}
}
