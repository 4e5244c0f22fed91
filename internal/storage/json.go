package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/pkg/types"
)

// JSONArchive stores cubes as one JSON array per file. Saves write a
// temporary sibling then rename it over the target, so a crash mid-write
// leaves the previous archive intact.
type JSONArchive struct {
	path   string
	logger *log.Logger
}

// NewJSONArchive returns a JSON file archive at path.
func NewJSONArchive(path string, logger *log.Logger) *JSONArchive {
	return &JSONArchive{path: path, logger: logger}
}

// Path returns the archive file path.
func (a *JSONArchive) Path() string {
	return a.path
}

// Load reads every cube record from the archive. A missing file is an empty
// tier; a corrupt file is reported and treated as empty rather than fatal.
func (a *JSONArchive) Load(_ context.Context) ([]*types.MemoryCube, error) {
	b, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive %s: %w", a.path, err)
	}

	var cubes []*types.MemoryCube
	if err := json.Unmarshal(b, &cubes); err != nil {
		a.logger.Warn("corrupt archive; treating as empty", "path", a.path, "error", err)
		return nil, nil
	}
	return cubes, nil
}

// Save atomically replaces the archive with the given cubes.
func (a *JSONArchive) Save(_ context.Context, cubes []*types.MemoryCube) error {
	if cubes == nil {
		cubes = []*types.MemoryCube{}
	}
	b, err := json.MarshalIndent(cubes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write archive temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace archive %s: %w", a.path, err)
	}
	return nil
}

// Clear deletes the archive file.
func (a *JSONArchive) Clear(_ context.Context) error {
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove archive %s: %w", a.path, err)
	}
	return nil
}

// Close is a no-op for file archives.
func (a *JSONArchive) Close() error {
	return nil
}
