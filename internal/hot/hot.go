// Package hot holds the active conversation buffer. When the buffer outgrows
// its token budget, older turns are folded into a rolling summary that the
// orchestrator migrates into the warm tier.
package hot

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/tokens"
	"github.com/xiy/memtier/pkg/types"
)

// fallbackMaxTurns bounds the buffer when no summarizer is configured.
const fallbackMaxTurns = 20

// Summarizer compacts evicted turns into a rolling natural-language summary.
// It is an external chat-completion collaborator; failures propagate.
type Summarizer interface {
	Summarize(ctx context.Context, prior string, turns []types.Turn) (string, error)
}

// Tier is the hot tier conversation buffer.
type Tier struct {
	maxTokenLimit int
	summarizer    Summarizer
	logger        *log.Logger

	buffer          []types.Turn
	summary         string
	consumedSummary string
}

// New constructs a hot tier. summarizer may be nil, in which case the buffer
// is simply bounded and no summaries are produced.
func New(maxTokenLimit int, summarizer Summarizer, logger *log.Logger) *Tier {
	if maxTokenLimit <= 0 {
		maxTokenLimit = 12000
	}
	return &Tier{
		maxTokenLimit: maxTokenLimit,
		summarizer:    summarizer,
		logger:        logger,
	}
}

// AddTurn appends a conversation turn. If the cumulative token estimate
// exceeds the limit and a summarizer is configured, the oldest turns are
// compacted into the rolling summary and evicted from the raw buffer.
func (t *Tier) AddTurn(ctx context.Context, user, assistant string) error {
	t.buffer = append(t.buffer, types.Turn{User: user, Assistant: assistant})

	if t.summarizer == nil {
		if len(t.buffer) > fallbackMaxTurns {
			t.buffer = append([]types.Turn(nil), t.buffer[len(t.buffer)-fallbackMaxTurns:]...)
		}
		return nil
	}

	if t.TokenEstimate() <= t.maxTokenLimit {
		return nil
	}

	evicted := t.evictOldest()
	if len(evicted) == 0 {
		return nil
	}

	summary, err := t.summarizer.Summarize(ctx, t.summary, evicted)
	if err != nil {
		// Restore the buffer so a summarizer outage loses nothing.
		t.buffer = append(evicted, t.buffer...)
		return fmt.Errorf("summarize evicted turns: %w", err)
	}
	t.summary = summary
	t.logger.Debug("hot tier compacted", "evicted_turns", len(evicted), "buffered_turns", len(t.buffer))
	return nil
}

// evictOldest removes turns from the front until the remainder fits the
// budget, always keeping at least the newest turn.
func (t *Tier) evictOldest() []types.Turn {
	var evicted []types.Turn
	for len(t.buffer) > 1 && t.TokenEstimate() > t.maxTokenLimit {
		evicted = append(evicted, t.buffer[0])
		t.buffer = t.buffer[1:]
	}
	if len(evicted) == 0 {
		return nil
	}
	out := make([]types.Turn, len(evicted))
	copy(out, evicted)
	t.buffer = append([]types.Turn(nil), t.buffer...)
	return out
}

// ConsumeSummary returns the rolling summary exactly once per generation.
// It is the hand-off point to the warm tier and never re-delivers.
func (t *Tier) ConsumeSummary() (string, bool) {
	if t.summary == "" || t.summary == t.consumedSummary {
		return "", false
	}
	t.consumedSummary = t.summary
	return t.summary, true
}

// Context returns a copy of the raw buffer for the next model call.
func (t *Tier) Context() []types.Turn {
	out := make([]types.Turn, len(t.buffer))
	copy(out, t.buffer)
	return out
}

// TokenEstimate returns the estimated token footprint of the buffer.
func (t *Tier) TokenEstimate() int {
	total := 0
	for _, turn := range t.buffer {
		total += tokens.EstimateText(turn.User) + tokens.EstimateText(turn.Assistant)
	}
	return total
}

// Size returns the number of buffered turns.
func (t *Tier) Size() int {
	return len(t.buffer)
}

// Clear resets the buffer and summary tracking.
func (t *Tier) Clear() {
	t.buffer = nil
	t.summary = ""
	t.consumedSummary = ""
}
