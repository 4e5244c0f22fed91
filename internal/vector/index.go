package vector

import (
	"fmt"
	"sort"
	"time"

	"github.com/xiy/memtier/pkg/types"
)

// maxHeatEpsilon keeps heat normalization defined when every member is cold.
const maxHeatEpsilon = 1e-9

// Scored pairs a cube with its search score.
type Scored struct {
	Cube  *types.MemoryCube
	Score float64
}

// Index is an in-memory collection of memory cubes with exact linear-scan
// k-nearest-neighbor search. The first inserted cube fixes the index
// dimension; later adds and queries must match it.
type Index struct {
	items []*types.MemoryCube
	dim   int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Add appends a cube to the index.
func (ix *Index) Add(cube *types.MemoryCube) error {
	if len(cube.Embedding) == 0 {
		return fmt.Errorf("index add %s: empty embedding", cube.ID)
	}
	if ix.dim == 0 {
		ix.dim = len(cube.Embedding)
	} else if len(cube.Embedding) != ix.dim {
		return fmt.Errorf("index add %s: %w: got %d want %d", cube.ID, ErrDimensionMismatch, len(cube.Embedding), ix.dim)
	}
	ix.items = append(ix.items, cube)
	return nil
}

// AddBatch appends multiple cubes, failing on the first mismatch.
func (ix *Index) AddBatch(cubes []*types.MemoryCube) error {
	for _, cube := range cubes {
		if err := ix.Add(cube); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a cube by id and reports whether it was found.
func (ix *Index) Remove(id string) bool {
	for i, cube := range ix.items {
		if cube.ID == id {
			ix.items = append(ix.items[:i], ix.items[i+1:]...)
			if len(ix.items) == 0 {
				ix.dim = 0
			}
			return true
		}
	}
	return false
}

// Get returns a cube by id, or nil when absent.
func (ix *Index) Get(id string) *types.MemoryCube {
	for _, cube := range ix.items {
		if cube.ID == id {
			return cube
		}
	}
	return nil
}

// GetAll returns the members in insertion order.
func (ix *Index) GetAll() []*types.MemoryCube {
	out := make([]*types.MemoryCube, len(ix.items))
	copy(out, ix.items)
	return out
}

// Size returns the number of indexed cubes.
func (ix *Index) Size() int {
	return len(ix.items)
}

// Dimension returns the established embedding dimension, 0 when empty.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Clear removes every member.
func (ix *Index) Clear() {
	ix.items = nil
	ix.dim = 0
}

// Search returns the k members most similar to the query vector, sorted by
// cosine similarity descending. A non-nil threshold filters out scores below
// it. An empty index yields an empty result.
func (ix *Index) Search(query []float32, k int, threshold *float64) ([]Scored, error) {
	if len(ix.items) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("index search: %w: got %d want %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	scored := make([]Scored, 0, len(ix.items))
	for _, cube := range ix.items {
		score, err := Cosine(query, cube.Embedding)
		if err != nil {
			return nil, fmt.Errorf("index search %s: %w", cube.ID, err)
		}
		if threshold != nil && score < *threshold {
			continue
		}
		scored = append(scored, Scored{Cube: cube, Score: score})
	}

	sortByScore(scored)
	return topK(scored, k), nil
}

// SearchWithHeat blends cosine similarity with normalized heat:
// (1-w)*similarity + w*heat/maxHeat. Frequently-and-recently-used memories
// can outrank purely semantic matches.
func (ix *Index) SearchWithHeat(query []float32, k int, heatWeight float64, now time.Time) ([]Scored, error) {
	if len(ix.items) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("index search with heat: %w: got %d want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if heatWeight < 0 {
		heatWeight = 0
	} else if heatWeight > 1 {
		heatWeight = 1
	}

	maxHeat := maxHeatEpsilon
	for _, cube := range ix.items {
		if h := cube.HeatScore(now); h > maxHeat {
			maxHeat = h
		}
	}

	scored := make([]Scored, 0, len(ix.items))
	for _, cube := range ix.items {
		similarity, err := Cosine(query, cube.Embedding)
		if err != nil {
			return nil, fmt.Errorf("index search with heat %s: %w", cube.ID, err)
		}
		combined := (1-heatWeight)*similarity + heatWeight*(cube.HeatScore(now)/maxHeat)
		scored = append(scored, Scored{Cube: cube, Score: combined})
	}

	sortByScore(scored)
	return topK(scored, k), nil
}

func sortByScore(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

func topK(scored []Scored, k int) []Scored {
	if k <= 0 || k >= len(scored) {
		return scored
	}
	return scored[:k]
}
