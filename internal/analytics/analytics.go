// Package analytics tracks retrieval timing and tier hit rates.
package analytics

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/xiy/memtier/pkg/types"
)

const queryLogLimit = 50

// Event is one recorded retrieval operation.
type Event struct {
	ID         string
	Timestamp  time.Time
	Query      string
	Tier       types.Tier
	ElapsedMS  float64
	Results    int
	Candidates int
}

// TierSummary aggregates retrieval metrics for one tier.
type TierSummary struct {
	Tier      types.Tier
	Hits      int
	AvgMS     float64
	HitRate   float64
	TotalMS   float64
	LastQuery string
}

// Recorder collects retrieval events. A nil *Recorder is a valid no-op, so
// callers never need to branch on whether analytics is enabled.
type Recorder struct {
	mu      sync.Mutex
	logger  *log.Logger
	live    bool
	events  []Event
	hits    map[types.Tier]int
	totalMS map[types.Tier]float64
	lastQ   map[types.Tier]string
}

// NewRecorder constructs a recorder. live enables per-event logging.
func NewRecorder(logger *log.Logger, live bool) *Recorder {
	return &Recorder{
		logger:  logger,
		live:    live,
		hits:    make(map[types.Tier]int),
		totalMS: make(map[types.Tier]float64),
		lastQ:   make(map[types.Tier]string),
	}
}

// LogRetrieval records one retrieval operation.
func (r *Recorder) LogRetrieval(query string, tier types.Tier, elapsed time.Duration, results, candidates int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Query:      truncateQuery(query),
		Tier:       tier,
		ElapsedMS:  float64(elapsed.Microseconds()) / 1000.0,
		Results:    results,
		Candidates: candidates,
	}
	r.events = append(r.events, ev)
	r.hits[tier]++
	r.totalMS[tier] += ev.ElapsedMS
	r.lastQ[tier] = ev.Query

	if r.live {
		r.logger.Debug("memory retrieval",
			"id", ev.ID,
			"tier", tier.String(),
			"results", results,
			"elapsed_ms", ev.ElapsedMS,
			"candidates", candidates,
		)
	}
}

// AverageRetrievalMS returns the mean retrieval time for one tier.
func (r *Recorder) AverageRetrievalMS(tier types.Tier) float64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	hits := r.hits[tier]
	if hits == 0 {
		return 0
	}
	return r.totalMS[tier] / float64(hits)
}

// Summary returns per-tier aggregates for the admin dashboard.
func (r *Recorder) Summary() []TierSummary {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, h := range r.hits {
		total += h
	}

	out := make([]TierSummary, 0, 3)
	for _, tier := range []types.Tier{types.TierHot, types.TierWarm, types.TierCold} {
		hits := r.hits[tier]
		s := TierSummary{Tier: tier, Hits: hits, TotalMS: r.totalMS[tier], LastQuery: r.lastQ[tier]}
		if hits > 0 {
			s.AvgMS = r.totalMS[tier] / float64(hits)
		}
		if total > 0 {
			s.HitRate = float64(hits) / float64(total) * 100
		}
		out = append(out, s)
	}
	return out
}

// RecentEvents returns up to limit of the newest events, newest first.
func (r *Recorder) RecentEvents(limit int) []Event {
	if r == nil || limit <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.events)
	if limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.events[i])
	}
	return out
}

// EventCount returns the number of recorded events.
func (r *Recorder) EventCount() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards all recorded metrics.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.hits = make(map[types.Tier]int)
	r.totalMS = make(map[types.Tier]float64)
	r.lastQ = make(map[types.Tier]string)
}

func truncateQuery(q string) string {
	if len(q) <= queryLogLimit {
		return q
	}
	return q[:queryLogLimit] + "..."
}
