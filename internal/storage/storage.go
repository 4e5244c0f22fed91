// Package storage persists tier archives. Tier logic never touches files or
// SQL directly; it talks to an Archive so backends can be swapped.
package storage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/pkg/types"
)

// Archive is full-file persistence for one tier. Save replaces the whole
// archive; readers must never observe a partial write.
type Archive interface {
	Load(ctx context.Context) ([]*types.MemoryCube, error)
	Save(ctx context.Context, cubes []*types.MemoryCube) error
	Clear(ctx context.Context) error
	Path() string
	Close() error
}

// Open constructs an archive backend by kind ("json" or "sqlite").
func Open(kind, path string, logger *log.Logger) (Archive, error) {
	switch kind {
	case "", "json":
		return NewJSONArchive(path, logger), nil
	case "sqlite":
		return OpenSQLiteArchive(path, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
