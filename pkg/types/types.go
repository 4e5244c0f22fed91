package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tier is the storage class of a memory, ordered by expected access speed.
type Tier int

const (
	// TierHot is the active conversation buffer inside the context window.
	TierHot Tier = iota
	// TierWarm is the vector-indexed long-term store.
	TierWarm
	// TierCold is the disk archive for de-prioritized memories.
	TierCold
)

var tierNames = map[Tier]string{
	TierHot:  "HOT",
	TierWarm: "WARM",
	TierCold: "COLD",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier converts an archive record tier name back into a Tier.
func ParseTier(name string) (Tier, error) {
	for tier, n := range tierNames {
		if n == name {
			return tier, nil
		}
	}
	return TierHot, fmt.Errorf("unknown tier %q", name)
}

// MarshalJSON encodes the tier as its archive record name.
func (t Tier) MarshalJSON() ([]byte, error) {
	name, ok := tierNames[t]
	if !ok {
		return nil, fmt.Errorf("marshal tier: unknown tier %d", int(t))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a tier name from an archive record.
func (t *Tier) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("unmarshal tier: %w", err)
	}
	parsed, err := ParseTier(name)
	if err != nil {
		return fmt.Errorf("unmarshal tier: %w", err)
	}
	*t = parsed
	return nil
}

// MemoryCube is the fundamental unit of long-term memory: raw text wrapped
// with the metadata needed for ranked retrieval.
type MemoryCube struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	Embedding     []float32 `json:"embedding"`
	Tier          Tier      `json:"tier"`
	AccessCount   int       `json:"access_count"`
	LastAccess    time.Time `json:"last_access"`
	SourceSummary bool      `json:"source_summary"`
	Tags          []string  `json:"tags,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// Touch updates access metrics when this memory is retrieved.
func (c *MemoryCube) Touch(now time.Time) {
	c.AccessCount++
	c.LastAccess = now
}

// HeatScore blends access frequency with recency. Zero for never-accessed
// cubes; decays on an hourly scale for everything else.
func (c *MemoryCube) HeatScore(now time.Time) float64 {
	if c.AccessCount == 0 {
		return 0
	}
	hours := now.Sub(c.LastAccess).Hours()
	if hours < 0 {
		hours = 0
	}
	decay := 1.0 / (1.0 + hours)
	return float64(c.AccessCount) * decay
}

// Clone returns a deep copy of the cube.
func (c *MemoryCube) Clone() *MemoryCube {
	out := *c
	if c.Embedding != nil {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	if c.Tags != nil {
		out.Tags = make([]string, len(c.Tags))
		copy(out.Tags, c.Tags)
	}
	return &out
}

// Turn is one user/assistant exchange held by the hot tier.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// ContextBundle is the multi-tier retrieval result handed to the host process.
type ContextBundle struct {
	HotContext  []Turn       `json:"hot_context"`
	WarmContext []MemoryCube `json:"warm_context"`
	ColdContext []MemoryCube `json:"cold_context"`
	ElapsedMS   float64      `json:"elapsed_ms"`
}

// Stats is the read-only tier-size snapshot exposed for introspection.
type Stats struct {
	HotSize       int `json:"hot_size"`
	WarmSize      int `json:"warm_size"`
	ColdSize      int `json:"cold_size"`
	TotalMemories int `json:"total_memories"`
}
