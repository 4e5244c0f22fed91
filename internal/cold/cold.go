// Package cold is the disk archive for de-prioritized memories. Search is
// substring-only; semantic retrieval requires rehydration into warm.
package cold

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/analytics"
	"github.com/xiy/memtier/internal/storage"
	"github.com/xiy/memtier/pkg/types"
)

// Tier is the cold tier archive with a lazily loaded read cache.
type Tier struct {
	archive  storage.Archive
	recorder *analytics.Recorder
	logger   *log.Logger

	cache  []*types.MemoryCube
	loaded bool
}

// New constructs the cold tier. The archive is read on first use.
func New(archive storage.Archive, recorder *analytics.Recorder, logger *log.Logger) *Tier {
	return &Tier{archive: archive, recorder: recorder, logger: logger}
}

func (t *Tier) ensureLoaded(ctx context.Context) {
	if t.loaded {
		return
	}
	cubes, err := t.archive.Load(ctx)
	if err != nil {
		t.logger.Error("load cold archive failed; starting empty", "path", t.archive.Path(), "error", err)
		cubes = nil
	}
	t.cache = cubes
	t.loaded = true
}

// Save appends cubes to the archive with tier forcibly set to COLD and
// refreshes the cache.
func (t *Tier) Save(ctx context.Context, cubes []*types.MemoryCube) error {
	if len(cubes) == 0 {
		return nil
	}
	t.ensureLoaded(ctx)

	for _, cube := range cubes {
		cube.Tier = types.TierCold
		t.cache = append(t.cache, cube)
	}

	if err := t.archive.Save(ctx, t.cache); err != nil {
		t.logger.Error("persist cold tier failed", "path", t.archive.Path(), "error", err)
		return fmt.Errorf("persist cold tier: %w", err)
	}
	t.logger.Info("archived memories to cold storage", "count", len(cubes))
	return nil
}

// Search runs case-insensitive substring matching, ranked by raw occurrence
// count of the query. Matches are touched.
func (t *Tier) Search(ctx context.Context, query string, k int) []*types.MemoryCube {
	start := time.Now()
	t.ensureLoaded(ctx)

	needle := strings.ToLower(query)
	if needle == "" {
		return nil
	}

	type match struct {
		cube  *types.MemoryCube
		count int
	}
	var matches []match
	now := time.Now()
	for _, cube := range t.cache {
		count := strings.Count(strings.ToLower(cube.Content), needle)
		if count == 0 {
			continue
		}
		cube.Touch(now)
		matches = append(matches, match{cube: cube, count: count})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].count > matches[j].count
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}

	out := make([]*types.MemoryCube, len(matches))
	for i, m := range matches {
		out[i] = m.cube
	}

	t.recorder.LogRetrieval(query, types.TierCold, time.Since(start), len(out), len(t.cache))
	return out
}

// Rehydrate looks a cube up by id without removing it. Promotion is the
// orchestrator's two-step transaction: fetch here, then Remove.
func (t *Tier) Rehydrate(ctx context.Context, id string) *types.MemoryCube {
	t.ensureLoaded(ctx)
	for _, cube := range t.cache {
		if cube.ID == id {
			return cube
		}
	}
	return nil
}

// Remove deletes a cube from cold storage by id.
func (t *Tier) Remove(ctx context.Context, id string) (bool, error) {
	t.ensureLoaded(ctx)
	for i, cube := range t.cache {
		if cube.ID == id {
			t.cache = append(t.cache[:i], t.cache[i+1:]...)
			if err := t.archive.Save(ctx, t.cache); err != nil {
				return true, fmt.Errorf("persist cold tier: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// GetAll returns every cold memory.
func (t *Tier) GetAll(ctx context.Context) []*types.MemoryCube {
	t.ensureLoaded(ctx)
	out := make([]*types.MemoryCube, len(t.cache))
	copy(out, t.cache)
	return out
}

// Size returns the number of cold memories.
func (t *Tier) Size(ctx context.Context) int {
	t.ensureLoaded(ctx)
	return len(t.cache)
}

// Clear empties the cache and deletes the archive file.
func (t *Tier) Clear(ctx context.Context) error {
	t.cache = nil
	t.loaded = true
	if err := t.archive.Clear(ctx); err != nil {
		return fmt.Errorf("clear cold archive: %w", err)
	}
	return nil
}
