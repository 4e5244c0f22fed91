package optimizer

import (
	"fmt"
	"strings"
)

// Strategy selects how hard the optimizer works.
type Strategy int

const (
	// StrategyNone passes the conversation through untouched.
	StrategyNone Strategy = iota
	// StrategyLight trims whitespace and duplicates only.
	StrategyLight
	// StrategyAggressive truncates tool results, strips binary payloads,
	// and evicts old messages.
	StrategyAggressive
	// StrategyAdaptive picks effort based on how far over target the
	// conversation is.
	StrategyAdaptive
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyLight:
		return "light"
	case StrategyAggressive:
		return "aggressive"
	case StrategyAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return StrategyNone, nil
	case "light":
		return StrategyLight, nil
	case "aggressive":
		return StrategyAggressive, nil
	case "adaptive":
		return StrategyAdaptive, nil
	default:
		return StrategyNone, fmt.Errorf("unknown optimization strategy %q", s)
	}
}

// Config holds the optimizer thresholds.
type Config struct {
	Strategy           Strategy
	TargetTokens       int
	MaxTokens          int
	MinMessagesKeep    int
	MaxToolResultChars int
	MaxImages          int
	StripOldImages     bool
	CompressWhitespace bool
	RemoveDuplicates   bool
	SummarizeTools     bool
}

// DefaultConfig mirrors the adaptive defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:           StrategyAdaptive,
		TargetTokens:       8000,
		MaxTokens:          12000,
		MinMessagesKeep:    4,
		MaxToolResultChars: 2000,
		MaxImages:          3,
		StripOldImages:     true,
		CompressWhitespace: true,
		RemoveDuplicates:   true,
		SummarizeTools:     true,
	}
}

// ForStrategy returns the thresholds adjusted for a specific strategy.
func (c Config) ForStrategy(s Strategy) Config {
	switch s {
	case StrategyNone:
		out := c
		out.Strategy = s
		out.TargetTokens = c.MaxTokens
		out.CompressWhitespace = false
		out.RemoveDuplicates = false
		out.SummarizeTools = false
		return out
	case StrategyLight:
		out := c
		out.Strategy = s
		out.TargetTokens = c.MaxTokens
		out.MaxToolResultChars = 0
		out.CompressWhitespace = true
		out.RemoveDuplicates = true
		out.SummarizeTools = false
		return out
	case StrategyAggressive:
		out := c
		out.Strategy = s
		out.MaxToolResultChars = 500
		out.MaxImages = 1
		out.CompressWhitespace = true
		out.RemoveDuplicates = true
		out.SummarizeTools = true
		return out
	default:
		return c
	}
}

// Result reports what an optimization pass did.
type Result struct {
	OriginalTokens  int      `json:"original_tokens"`
	OptimizedTokens int      `json:"optimized_tokens"`
	TokensSaved     int      `json:"tokens_saved"`
	MessagesPruned  int      `json:"messages_pruned"`
	ImagesRemoved   int      `json:"images_removed"`
	StrategyUsed    Strategy `json:"strategy_used"`
}

// SavingsPercent is the fraction of the original budget reclaimed.
func (r Result) SavingsPercent() float64 {
	if r.OriginalTokens == 0 {
		return 0
	}
	return float64(r.TokensSaved) / float64(r.OriginalTokens) * 100
}

func (r Result) String() string {
	return fmt.Sprintf("optimized %d -> %d tokens (%.1f%% saved, %d msgs pruned)",
		r.OriginalTokens, r.OptimizedTokens, r.SavingsPercent(), r.MessagesPruned)
}
