package optimizer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/internal/config"
)

// Optimizer applies staged token reduction to a conversation.
type Optimizer struct {
	cfg    Config
	logger *log.Logger
}

// New builds an optimizer with the given thresholds.
func New(cfg Config, logger *log.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, logger: logger}
}

// FromSettings translates the yaml optimizer section into a Config.
func FromSettings(settings config.OptimizerConfig) (Config, error) {
	strategy, err := ParseStrategy(settings.Strategy)
	if err != nil {
		return Config{}, fmt.Errorf("optimizer config: %w", err)
	}
	return Config{
		Strategy:           strategy,
		TargetTokens:       settings.TargetTokens,
		MaxTokens:          settings.MaxTokens,
		MinMessagesKeep:    settings.MinMessagesKeep,
		MaxToolResultChars: settings.MaxToolResultChars,
		MaxImages:          settings.MaxImages,
		StripOldImages:     true,
		CompressWhitespace: settings.CompressWhitespace,
		RemoveDuplicates:   settings.RemoveDuplicates,
		SummarizeTools:     settings.SummarizeTools,
	}, nil
}

// Optimize reduces the conversation's token footprint. A zero targetTokens
// uses the configured target; StrategyAdaptive with the conversation
// already under target is a no-op.
func (o *Optimizer) Optimize(messages []Message, targetTokens int, strategy Strategy) ([]Message, Result) {
	target := targetTokens
	if target <= 0 {
		target = o.cfg.TargetTokens
	}

	cfg := o.cfg.ForStrategy(strategy)
	originalTokens := EstimateMessages(messages)

	passthrough := Result{
		OriginalTokens:  originalTokens,
		OptimizedTokens: originalTokens,
		StrategyUsed:    strategy,
	}
	if strategy == StrategyAdaptive && originalTokens <= target {
		return messages, passthrough
	}
	if strategy == StrategyNone {
		return messages, passthrough
	}

	optimized := make([]Message, len(messages))
	copy(optimized, messages)
	messagesPruned := 0
	imagesRemoved := 0

	optimized = compressMessages(optimized, cfg, strategy == StrategyAggressive)

	if cfg.RemoveDuplicates {
		var removed int
		optimized, removed = pruneDuplicates(optimized)
		messagesPruned += removed
	}

	if cfg.StripOldImages {
		optimized, imagesRemoved = pruneImages(optimized, cfg.MaxImages)
	}

	currentTokens := EstimateMessages(optimized)
	if currentTokens > target && (strategy == StrategyAggressive || strategy == StrategyAdaptive) {
		avgPerMessage := float64(100)
		if len(optimized) > 0 {
			avgPerMessage = float64(currentTokens) / float64(len(optimized))
		}
		toRemove := int(float64(currentTokens-target)/avgPerMessage) + 1

		targetCount := len(optimized) - toRemove
		if targetCount < cfg.MinMessagesKeep {
			targetCount = cfg.MinMessagesKeep
		}

		var pruned int
		optimized, pruned = pruneOldest(optimized, targetCount, cfg.MinMessagesKeep)
		messagesPruned += pruned
	}

	optimizedTokens := EstimateMessages(optimized)
	result := Result{
		OriginalTokens:  originalTokens,
		OptimizedTokens: optimizedTokens,
		TokensSaved:     originalTokens - optimizedTokens,
		MessagesPruned:  messagesPruned,
		ImagesRemoved:   imagesRemoved,
		StrategyUsed:    strategy,
	}

	o.logger.Debug("token optimization complete",
		"original", result.OriginalTokens,
		"optimized", result.OptimizedTokens,
		"pruned", result.MessagesPruned,
		"strategy", strategy.String())

	return optimized, result
}

// EstimateSavings runs each strategy against the conversation and reports
// the resulting token counts without touching the caller's messages.
func (o *Optimizer) EstimateSavings(messages []Message) map[string]Result {
	estimates := make(map[string]Result)
	for _, s := range []Strategy{StrategyNone, StrategyLight, StrategyAggressive, StrategyAdaptive} {
		_, result := o.Optimize(messages, 0, s)
		estimates[s.String()] = result
	}
	return estimates
}

// AutoSelectStrategy picks an effort level from the conversation's size
// relative to the configured targets.
func (o *Optimizer) AutoSelectStrategy(messages []Message) Strategy {
	tokens := EstimateMessages(messages)
	switch {
	case float64(tokens) < float64(o.cfg.TargetTokens)*0.5:
		return StrategyNone
	case tokens < o.cfg.TargetTokens:
		return StrategyLight
	default:
		return StrategyAggressive
	}
}
