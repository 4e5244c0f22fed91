// Package warm is the vector-indexed long-term store and the primary
// semantic-retrieval surface.
package warm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/analytics"
	"github.com/xiy/memtier/internal/embeddings"
	"github.com/xiy/memtier/internal/storage"
	"github.com/xiy/memtier/internal/vector"
	"github.com/xiy/memtier/pkg/types"
)

// AddOptions carries optional metadata for a new memory.
type AddOptions struct {
	SourceSummary bool
	Tags          []string
	Source        string
}

// Tier owns the vector index, the embedding provider and the warm archive.
type Tier struct {
	provider  embeddings.Provider
	archive   storage.Archive
	index     *vector.Index
	recorder  *analytics.Recorder
	logger    *log.Logger
	idCounter int64
}

// New constructs the warm tier, loading any existing archive into the index
// and advancing the id counter past every loaded id.
func New(ctx context.Context, provider embeddings.Provider, archive storage.Archive, recorder *analytics.Recorder, logger *log.Logger) (*Tier, error) {
	t := &Tier{
		provider: provider,
		archive:  archive,
		index:    vector.NewIndex(),
		recorder: recorder,
		logger:   logger,
	}

	cubes, err := archive.Load(ctx)
	if err != nil {
		// A failed load leaves the tier usable in memory.
		logger.Error("load warm archive failed; starting empty", "path", archive.Path(), "error", err)
		return t, nil
	}
	for _, cube := range cubes {
		if err := t.index.Add(cube); err != nil {
			logger.Warn("skipping archived cube", "id", cube.ID, "error", err)
			continue
		}
		t.advanceCounter(cube.ID)
	}
	if t.index.Size() > 0 {
		logger.Info("warm tier loaded", "count", t.index.Size(), "path", archive.Path())
	}
	return t, nil
}

// advanceCounter keeps generated ids unique across restarts by moving the
// counter past the suffix of any loaded id.
func (t *Tier) advanceCounter(id string) {
	parts := strings.Split(id, "_")
	if len(parts) == 0 {
		return
	}
	n, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return
	}
	if n >= t.idCounter {
		t.idCounter = n + 1
	}
}

func (t *Tier) generateID(now time.Time) string {
	t.idCounter++
	return fmt.Sprintf("mem_%d_%d", now.UnixMilli(), t.idCounter)
}

// Add embeds content, builds a cube with tier WARM, indexes it and persists
// the archive. A persistence failure is surfaced but the cube stays indexed.
func (t *Tier) Add(ctx context.Context, content string, opts AddOptions) (*types.MemoryCube, error) {
	embedding, err := t.provider.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	now := time.Now()
	cube := &types.MemoryCube{
		ID:            t.generateID(now),
		Content:       content,
		Timestamp:     now,
		Embedding:     embedding,
		Tier:          types.TierWarm,
		SourceSummary: opts.SourceSummary,
		Tags:          opts.Tags,
		Source:        opts.Source,
	}

	if err := t.index.Add(cube); err != nil {
		return nil, fmt.Errorf("index cube: %w", err)
	}
	t.logger.Debug("warm tier add", "id", cube.ID, "source", cube.Source)

	if err := t.Save(ctx); err != nil {
		return cube, err
	}
	return cube, nil
}

// Insert places an existing cube (rehydration) into the index and persists.
func (t *Tier) Insert(ctx context.Context, cube *types.MemoryCube) error {
	cube.Tier = types.TierWarm
	if err := t.index.Add(cube); err != nil {
		return fmt.Errorf("index cube: %w", err)
	}
	t.advanceCounter(cube.ID)
	return t.Save(ctx)
}

// Search embeds the query and runs plain or heat-weighted k-NN. Every
// returned cube is touched: retrieval is itself an access event.
func (t *Tier) Search(ctx context.Context, query string, k int, useHeat bool, heatWeight float64) ([]*types.MemoryCube, error) {
	start := time.Now()

	queryVector, err := t.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var scored []vector.Scored
	if useHeat {
		scored, err = t.index.SearchWithHeat(queryVector, k, heatWeight, start)
	} else {
		scored, err = t.index.Search(queryVector, k, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("warm search: %w", err)
	}

	now := time.Now()
	cubes := make([]*types.MemoryCube, 0, len(scored))
	for _, s := range scored {
		s.Cube.Touch(now)
		cubes = append(cubes, s.Cube)
	}

	t.recorder.LogRetrieval(query, types.TierWarm, time.Since(start), len(cubes), t.index.Size())
	return cubes, nil
}

// PruneCold returns, without mutating state, the cubes whose heat is below
// threshold AND whose last access is older than maxAgeHours. Never-accessed
// cubes fall back to their creation timestamp for the age check.
func (t *Tier) PruneCold(now time.Time, heatThreshold, maxAgeHours float64) []*types.MemoryCube {
	cutoff := now.Add(-time.Duration(maxAgeHours * float64(time.Hour)))

	var candidates []*types.MemoryCube
	for _, cube := range t.index.GetAll() {
		if cube.HeatScore(now) >= heatThreshold {
			continue
		}
		ref := cube.LastAccess
		if ref.IsZero() {
			ref = cube.Timestamp
		}
		if ref.After(cutoff) {
			continue
		}
		candidates = append(candidates, cube)
	}
	return candidates
}

// Remove deletes a cube by id and persists when found.
func (t *Tier) Remove(ctx context.Context, id string) (bool, error) {
	if !t.index.Remove(id) {
		return false, nil
	}
	if err := t.Save(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// GetByID returns a cube by id, nil when absent.
func (t *Tier) GetByID(id string) *types.MemoryCube {
	return t.index.Get(id)
}

// GetAll returns every warm cube.
func (t *Tier) GetAll() []*types.MemoryCube {
	return t.index.GetAll()
}

// Size returns the number of warm memories.
func (t *Tier) Size() int {
	return t.index.Size()
}

// Save serializes every cube to the archive.
func (t *Tier) Save(ctx context.Context) error {
	if err := t.archive.Save(ctx, t.index.GetAll()); err != nil {
		t.logger.Error("persist warm tier failed", "path", t.archive.Path(), "error", err)
		return fmt.Errorf("persist warm tier: %w", err)
	}
	return nil
}

// Clear empties the index and persists the empty archive.
func (t *Tier) Clear(ctx context.Context) error {
	t.index.Clear()
	return t.Save(ctx)
}
