package cold

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/storage"
	"github.com/xiy/memtier/pkg/types"
)

func newTestTier(t *testing.T) (*Tier, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.json")
	archive, err := storage.Open("json", path, log.New(io.Discard))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	return New(archive, nil, log.New(io.Discard)), path
}

func cube(id, content string) *types.MemoryCube {
	return &types.MemoryCube{
		ID:        id,
		Content:   content,
		Timestamp: time.Now(),
		Tier:      types.TierWarm,
	}
}

func TestSaveForcesColdTier(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()

	c := cube("mem_1_0", "deployment pipeline notes")
	if err := tier.Save(ctx, []*types.MemoryCube{c}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tier.GetAll(ctx)
	if len(got) != 1 {
		t.Fatalf("expected 1 cube, got %d", len(got))
	}
	if got[0].Tier != types.TierCold {
		t.Errorf("tier = %v, want COLD", got[0].Tier)
	}
}

func TestSearchRanksByOccurrenceCount(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()

	err := tier.Save(ctx, []*types.MemoryCube{
		cube("mem_1_0", "redis cache only mentioned once"),
		cube("mem_1_1", "redis config, redis cluster, redis sentinel"),
		cube("mem_1_2", "no match here"),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	results := tier.Search(ctx, "Redis", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "mem_1_1" {
		t.Errorf("first result = %s, want mem_1_1 (most occurrences)", results[0].ID)
	}
	if results[0].AccessCount == 0 {
		t.Error("search match was not touched")
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()

	err := tier.Save(ctx, []*types.MemoryCube{
		cube("mem_1_0", "alpha"),
		cube("mem_1_1", "alpha"),
		cube("mem_1_2", "alpha"),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got := tier.Search(ctx, "alpha", 2); len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
}

func TestRehydrateDoesNotRemove(t *testing.T) {
	t.Parallel()
	tier, _ := newTestTier(t)
	ctx := context.Background()

	if err := tier.Save(ctx, []*types.MemoryCube{cube("mem_1_0", "keep me")}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got := tier.Rehydrate(ctx, "mem_1_0"); got == nil {
		t.Fatal("Rehydrate returned nil for existing id")
	}
	if tier.Size(ctx) != 1 {
		t.Error("Rehydrate removed the cube")
	}
	if got := tier.Rehydrate(ctx, "mem_missing"); got != nil {
		t.Error("Rehydrate returned a cube for unknown id")
	}
}

func TestRemovePersists(t *testing.T) {
	t.Parallel()
	tier, path := newTestTier(t)
	ctx := context.Background()

	err := tier.Save(ctx, []*types.MemoryCube{
		cube("mem_1_0", "first"),
		cube("mem_1_1", "second"),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := tier.Remove(ctx, "mem_1_0")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !found {
		t.Fatal("Remove did not find mem_1_0")
	}

	archive, err := storage.Open("json", path, log.New(io.Discard))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	reloaded := New(archive, nil, log.New(io.Discard))
	if reloaded.Size(ctx) != 1 {
		t.Fatalf("expected 1 cube after remove, got %d", reloaded.Size(ctx))
	}
	if reloaded.GetAll(ctx)[0].ID != "mem_1_1" {
		t.Error("wrong cube survived the remove")
	}
}

func TestClearDeletesArchive(t *testing.T) {
	t.Parallel()
	tier, path := newTestTier(t)
	ctx := context.Background()

	if err := tier.Save(ctx, []*types.MemoryCube{cube("mem_1_0", "gone soon")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := tier.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if tier.Size(ctx) != 0 {
		t.Error("cache not empty after Clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("archive file still present after Clear: %v", err)
	}
}
