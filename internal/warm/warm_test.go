package warm

import (
	"context"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/embeddings"
	"github.com/xiy/memtier/internal/storage"
	"github.com/xiy/memtier/internal/vector"
)

func newTestTier(t *testing.T) (*Tier, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warm.json")
	return newTierAt(t, path), path
}

func newTierAt(t *testing.T, path string) *Tier {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	archive := storage.NewJSONArchive(path, logger)
	tier, err := New(context.Background(), embeddings.NewHashProvider(64), archive, nil, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tier
}

func TestExactQueryRetrieval(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()

	const content = "The user's favorite color is blue"
	if _, err := tier.Add(ctx, content, AddOptions{}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := tier.Add(ctx, "The deployment runs on port 8080", AddOptions{}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := tier.Search(ctx, content, 1, false, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != content {
		t.Fatalf("Search() top result = %v, want the exact-content cube", got)
	}

	// Identical text embeds identically, so the similarity must be 1.0.
	provider := embeddings.NewHashProvider(64)
	qv, _ := provider.Embed(ctx, content)
	score, err := vector.Cosine(qv, got[0].Embedding)
	if err != nil {
		t.Fatalf("Cosine() error = %v", err)
	}
	if math.Abs(score-1.0) > 1e-6 {
		t.Fatalf("similarity = %v, want 1.0", score)
	}
}

func TestSearchTouchesResults(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()

	cube, err := tier.Add(ctx, "remember the vpn endpoint", AddOptions{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if cube.AccessCount != 0 {
		t.Fatalf("new cube AccessCount = %d, want 0", cube.AccessCount)
	}

	if _, err := tier.Search(ctx, "vpn endpoint", 5, false, 0); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if cube.AccessCount != 1 {
		t.Fatalf("AccessCount after search = %d, want 1", cube.AccessCount)
	}
	if cube.LastAccess.IsZero() {
		t.Fatal("LastAccess not set by search")
	}
}

func TestArchiveRoundTripAcrossRestart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "warm.json")
	first := newTierAt(t, path)
	ctx := context.Background()

	orig, err := first.Add(ctx, "persistent fact", AddOptions{Tags: []string{"fact"}, Source: "manual"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	second := newTierAt(t, path)
	if second.Size() != 1 {
		t.Fatalf("reloaded Size() = %d, want 1", second.Size())
	}
	got := second.GetByID(orig.ID)
	if got == nil {
		t.Fatalf("cube %s missing after reload", orig.ID)
	}
	if got.Content != orig.Content || got.Source != orig.Source {
		t.Fatalf("reloaded cube = %+v, want content/source preserved", got)
	}
	for i := range orig.Embedding {
		if got.Embedding[i] != orig.Embedding[i] {
			t.Fatal("embedding not preserved across restart")
		}
	}

	// New ids must not collide with loaded ones.
	fresh, err := second.Add(ctx, "another fact", AddOptions{})
	if err != nil {
		t.Fatalf("Add() after reload error = %v", err)
	}
	if fresh.ID == orig.ID {
		t.Fatalf("id collision after reload: %s", fresh.ID)
	}
}

func TestPruneColdEligibility(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()
	now := time.Now()

	stale, err := tier.Add(ctx, "stale untouched memory", AddOptions{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	stale.Timestamp = now.Add(-48 * time.Hour)

	active, err := tier.Add(ctx, "recently used memory", AddOptions{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	active.AccessCount = 10
	active.LastAccess = now.Add(-5 * time.Minute)

	candidates := tier.PruneCold(now, 0.1, 24)
	if len(candidates) != 1 {
		t.Fatalf("PruneCold() returned %d candidates, want 1", len(candidates))
	}
	if candidates[0].ID != stale.ID {
		t.Fatalf("candidate = %s, want %s", candidates[0].ID, stale.ID)
	}

	// PruneCold must not mutate tier state.
	if tier.Size() != 2 {
		t.Fatalf("Size() = %d after PruneCold, want 2", tier.Size())
	}
}

func TestPruneColdRequiresBothConditions(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()
	now := time.Now()

	// Old since last touch but still hot: many accesses keep heat high.
	busy, err := tier.Add(ctx, "busy memory", AddOptions{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	busy.AccessCount = 1000
	busy.LastAccess = now.Add(-30 * time.Hour)

	if got := tier.PruneCold(now, 0.1, 24); len(got) != 0 {
		t.Fatalf("PruneCold() swept a high-heat memory: %v", got)
	}
}

func TestRemovePersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "warm.json")
	tier := newTierAt(t, path)
	ctx := context.Background()

	cube, _ := tier.Add(ctx, "to be removed", AddOptions{})
	found, err := tier.Remove(ctx, cube.ID)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !found {
		t.Fatal("Remove() = false, want true")
	}
	if found, _ := tier.Remove(ctx, cube.ID); found {
		t.Fatal("second Remove() = true, want false")
	}

	if reloaded := newTierAt(t, path); reloaded.Size() != 0 {
		t.Fatalf("reloaded Size() = %d after remove, want 0", reloaded.Size())
	}
}
