package sweep

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Archiver represents the migration behavior needed by the worker.
type Archiver interface {
	ArchiveColdMemories(ctx context.Context) (int, error)
}

// Start launches a periodic warm-to-cold archival worker.
func Start(ctx context.Context, logger *log.Logger, interval time.Duration, archiver Archiver) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := archiver.ArchiveColdMemories(ctx)
			if err != nil {
				logger.Warn("archival sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("archival sweep moved stale memories to cold", "count", n)
			}
		}
	}
}
