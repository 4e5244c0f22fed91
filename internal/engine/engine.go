// Package engine orchestrates the three memory tiers: hot conversation
// context, warm vector-indexed memory, and the cold disk archive.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/analytics"
	"github.com/xiy/memtier/internal/cold"
	"github.com/xiy/memtier/internal/config"
	"github.com/xiy/memtier/internal/embeddings"
	"github.com/xiy/memtier/internal/hot"
	"github.com/xiy/memtier/internal/warm"
	"github.com/xiy/memtier/pkg/types"
)

// RetrieveOptions selects which tiers a retrieval consults.
type RetrieveOptions struct {
	TopK        int
	IncludeHot  bool
	IncludeWarm bool
	IncludeCold bool
	// HeatWeight overrides the configured weight when non-nil.
	HeatWeight *float64
}

// DefaultRetrieveOptions consults all tiers with the configured top-k.
func DefaultRetrieveOptions(cfg *config.Config) RetrieveOptions {
	return RetrieveOptions{
		TopK:        cfg.Memory.DefaultTopK,
		IncludeHot:  true,
		IncludeWarm: true,
		IncludeCold: true,
	}
}

// Engine wires the tiers together and owns cross-tier migrations.
type Engine struct {
	cfg      *config.Config
	provider embeddings.Provider
	hot      *hot.Tier
	warm     *warm.Tier
	cold     *cold.Tier
	recorder *analytics.Recorder
	logger   *log.Logger
}

// New assembles an engine from already-constructed tiers.
func New(cfg *config.Config, provider embeddings.Provider, hotTier *hot.Tier, warmTier *warm.Tier, coldTier *cold.Tier, recorder *analytics.Recorder, logger *log.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		provider: provider,
		hot:      hotTier,
		warm:     warmTier,
		cold:     coldTier,
		recorder: recorder,
		logger:   logger,
	}
}

// ProcessTurn records a conversation turn in the hot tier. When the turn
// pushes the buffer over its token limit the hot tier summarizes the evicted
// turns; that summary is migrated into warm memory here.
func (e *Engine) ProcessTurn(ctx context.Context, user, assistant string) error {
	if err := e.hot.AddTurn(ctx, user, assistant); err != nil {
		return fmt.Errorf("hot tier: %w", err)
	}

	summary, ok := e.hot.ConsumeSummary()
	if !ok || summary == "" {
		return nil
	}

	_, err := e.warm.Add(ctx, summary, warm.AddOptions{
		SourceSummary: true,
		Source:        "hot_tier_summary",
	})
	if err != nil {
		return fmt.Errorf("migrate summary to warm: %w", err)
	}
	e.logger.Info("hot tier summary migrated to warm memory")
	return nil
}

// AddMemory stores content directly in the warm tier.
func (e *Engine) AddMemory(ctx context.Context, content string, opts warm.AddOptions) (*types.MemoryCube, error) {
	return e.warm.Add(ctx, content, opts)
}

// RetrieveContext gathers context for a query from the selected tiers.
func (e *Engine) RetrieveContext(ctx context.Context, query string, opts RetrieveOptions) (*types.ContextBundle, error) {
	start := time.Now()
	bundle := &types.ContextBundle{}

	if opts.IncludeHot {
		bundle.HotContext = e.hot.Context()
	}

	if opts.IncludeWarm {
		weight := e.cfg.Memory.HeatWeight
		if opts.HeatWeight != nil {
			weight = *opts.HeatWeight
		}
		cubes, err := e.warm.Search(ctx, query, opts.TopK, true, weight)
		if err != nil {
			return nil, fmt.Errorf("warm retrieval: %w", err)
		}
		bundle.WarmContext = cloneAll(cubes)
	}

	if opts.IncludeCold {
		bundle.ColdContext = cloneAll(e.cold.Search(ctx, query, opts.TopK))
	}

	bundle.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000.0
	return bundle, nil
}

// ArchiveColdMemories moves stale low-heat warm cubes to the cold tier. The
// migration writes to cold first and removes from warm only after the cold
// write succeeded, so a failure can duplicate a memory but never lose one.
func (e *Engine) ArchiveColdMemories(ctx context.Context) (int, error) {
	candidates := e.warm.PruneCold(time.Now(), e.cfg.Memory.HeatThreshold, e.cfg.Memory.MaxAgeHours)
	if len(candidates) == 0 {
		return 0, nil
	}

	if err := e.cold.Save(ctx, candidates); err != nil {
		return 0, fmt.Errorf("archive to cold: %w", err)
	}

	moved := 0
	for _, cube := range candidates {
		if _, err := e.warm.Remove(ctx, cube.ID); err != nil {
			return moved, fmt.Errorf("remove %s from warm: %w", cube.ID, err)
		}
		moved++
	}

	e.logger.Info("archived warm memories to cold", "count", moved)
	return moved, nil
}

// RehydrateMemory promotes a cold memory back into the warm tier. The stored
// embedding is reused unless its dimension no longer matches the active
// provider, in which case the content is re-embedded. Returns false when the
// id is not in cold storage.
func (e *Engine) RehydrateMemory(ctx context.Context, id string) (*types.MemoryCube, bool, error) {
	cube := e.cold.Rehydrate(ctx, id)
	if cube == nil {
		return nil, false, nil
	}

	if len(cube.Embedding) != e.provider.Dimension() {
		embedding, err := e.provider.Embed(ctx, cube.Content)
		if err != nil {
			return nil, true, fmt.Errorf("re-embed %s: %w", id, err)
		}
		cube.Embedding = embedding
	}

	if err := e.warm.Insert(ctx, cube); err != nil {
		return nil, true, fmt.Errorf("insert %s into warm: %w", id, err)
	}
	if _, err := e.cold.Remove(ctx, id); err != nil {
		return cube, true, fmt.Errorf("remove %s from cold: %w", id, err)
	}

	e.logger.Info("rehydrated memory from cold storage", "id", id)
	return cube, true, nil
}

// Stats reports per-tier sizes. The total counts long-term memories only;
// hot turns are raw conversational state, not cubes.
func (e *Engine) Stats(ctx context.Context) types.Stats {
	warmSize := e.warm.Size()
	coldSize := e.cold.Size(ctx)
	return types.Stats{
		HotSize:       e.hot.Size(),
		WarmSize:      warmSize,
		ColdSize:      coldSize,
		TotalMemories: warmSize + coldSize,
	}
}

// RecentMemories returns the newest warm memories, newest first.
func (e *Engine) RecentMemories(limit int) []types.MemoryCube {
	cubes := e.warm.GetAll()
	sort.Slice(cubes, func(i, j int) bool {
		return cubes[i].Timestamp.After(cubes[j].Timestamp)
	})
	if limit > 0 && len(cubes) > limit {
		cubes = cubes[:limit]
	}
	return cloneAll(cubes)
}

// ClearAll wipes every tier and the analytics history.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.hot.Clear()
	if err := e.warm.Clear(ctx); err != nil {
		return fmt.Errorf("clear warm tier: %w", err)
	}
	if err := e.cold.Clear(ctx); err != nil {
		return fmt.Errorf("clear cold tier: %w", err)
	}
	e.recorder.Reset()
	return nil
}

func cloneAll(cubes []*types.MemoryCube) []types.MemoryCube {
	out := make([]types.MemoryCube, 0, len(cubes))
	for _, cube := range cubes {
		out = append(out, *cube.Clone())
	}
	return out
}
