package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/xiy/memtier/pkg/types"
)

// SQLiteArchive stores cube records in an embedded SQLite database.
// Embeddings are packed as binary blobs. Save replaces the whole table in
// one transaction, matching the full-file rewrite semantics of JSONArchive.
type SQLiteArchive struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

const cubeSchema = `CREATE TABLE IF NOT EXISTS cubes (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	embedding BLOB NOT NULL,
	tier TEXT NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_access TEXT NOT NULL DEFAULT '',
	source_summary INTEGER NOT NULL DEFAULT 0,
	tags_json TEXT NOT NULL DEFAULT '[]',
	source TEXT NOT NULL DEFAULT ''
)`

// OpenSQLiteArchive opens and initializes a SQLite-backed archive.
func OpenSQLiteArchive(path string, logger *log.Logger) (*SQLiteArchive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &SQLiteArchive{db: db, path: path, logger: logger}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.Exec(cubeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cube schema: %w", err)
	}
	return a, nil
}

// Path returns the database file path.
func (a *SQLiteArchive) Path() string {
	return a.path
}

// Load reads every cube row. Rows with undecodable embeddings are skipped
// with a warning so one bad record cannot take the tier down.
func (a *SQLiteArchive) Load(ctx context.Context) ([]*types.MemoryCube, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, content, timestamp, embedding, tier,
	       access_count, last_access, source_summary, tags_json, source
	FROM cubes ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("query cubes: %w", err)
	}
	defer rows.Close()

	var cubes []*types.MemoryCube
	for rows.Next() {
		var (
			cube          types.MemoryCube
			timestamp     string
			blob          []byte
			tierName      string
			lastAccess    string
			sourceSummary int
			tagsJSON      string
		)
		if err := rows.Scan(
			&cube.ID,
			&cube.Content,
			&timestamp,
			&blob,
			&tierName,
			&cube.AccessCount,
			&lastAccess,
			&sourceSummary,
			&tagsJSON,
			&cube.Source,
		); err != nil {
			return nil, fmt.Errorf("scan cube: %w", err)
		}

		embedding, err := DecodeVector(blob)
		if err != nil {
			a.logger.Warn("skipping cube with corrupt embedding", "id", cube.ID, "error", err)
			continue
		}
		cube.Embedding = embedding

		tier, err := types.ParseTier(tierName)
		if err != nil {
			a.logger.Warn("skipping cube with unknown tier", "id", cube.ID, "tier", tierName)
			continue
		}
		cube.Tier = tier
		cube.SourceSummary = sourceSummary == 1

		if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			cube.Timestamp = ts
		}
		if lastAccess != "" {
			if ts, err := time.Parse(time.RFC3339Nano, lastAccess); err == nil {
				cube.LastAccess = ts
			}
		}
		if err := json.Unmarshal([]byte(tagsJSON), &cube.Tags); err != nil {
			cube.Tags = nil
		}

		cubes = append(cubes, &cube)
	}
	return cubes, rows.Err()
}

// Save replaces every cube row in one transaction.
func (a *SQLiteArchive) Save(ctx context.Context, cubes []*types.MemoryCube) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cubes`); err != nil {
		return fmt.Errorf("clear cubes: %w", err)
	}

	const insert = `INSERT INTO cubes (
		id, content, timestamp, embedding, tier,
		access_count, last_access, source_summary, tags_json, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, cube := range cubes {
		blob, err := EncodeVector(cube.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", cube.ID, err)
		}
		tags := cube.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", cube.ID, err)
		}

		lastAccess := ""
		if !cube.LastAccess.IsZero() {
			lastAccess = cube.LastAccess.UTC().Format(time.RFC3339Nano)
		}
		sourceSummary := 0
		if cube.SourceSummary {
			sourceSummary = 1
		}

		if _, err := tx.ExecContext(ctx, insert,
			cube.ID,
			cube.Content,
			cube.Timestamp.UTC().Format(time.RFC3339Nano),
			blob,
			cube.Tier.String(),
			cube.AccessCount,
			lastAccess,
			sourceSummary,
			string(tagsJSON),
			cube.Source,
		); err != nil {
			return fmt.Errorf("insert cube %s: %w", cube.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Clear removes every cube row.
func (a *SQLiteArchive) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM cubes`); err != nil {
		return fmt.Errorf("clear cubes: %w", err)
	}
	return nil
}

// Close closes the database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
