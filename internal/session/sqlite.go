package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/agenthub/agenthub/internal/agents"

	_ "modernc.org/sqlite"
)

// Bridge mirrors store snapshots to durable local storage, one record per
// provider identity. It never owns the data: saves serialize whatever the
// store holds, loads fall back to a fresh default snapshot on missing,
// corrupt, or shape-mismatched records.
type Bridge struct {
	db *sql.DB
}

// Schema for the snapshots database.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    provider TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// schemaVersion is the current schema version. Increment when adding
// migrations for existing databases.
const schemaVersion = 1

// DefaultDBPath returns the snapshot database location, honoring
// XDG_DATA_HOME the way the rest of the data dir handling does.
func DefaultDBPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "agenthub", "snapshots.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "agenthub", "snapshots.db"), nil
}

// NewBridge opens (creating if needed) the snapshot database at path.
// An empty path selects DefaultDBPath.
func NewBridge(path string) (*Bridge, error) {
	if path == "" {
		var err error
		path, err = DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Bridge{db: db}, nil
}

func initSchema(db *sql.DB) error {
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version").Scan(&currentVersion)
	if err == nil && currentVersion >= schemaVersion {
		return nil
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("reset schema_version: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}
	return nil
}

// Save serializes the snapshot under the provider's key. Storage failures
// are returned for the caller to log; they must never crash the app.
func (b *Bridge) Save(provider string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	_, err = b.db.Exec(`
		INSERT INTO snapshots (provider, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		provider, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load returns the provider's persisted snapshot, or a fresh default
// snapshot for the given personas when the record is missing, unreadable,
// or does not have the expected shape.
func (b *Bridge) Load(provider string, personas []agents.ID) Snapshot {
	var data string
	err := b.db.QueryRow("SELECT data FROM snapshots WHERE provider = ?", provider).Scan(&data)
	if err == sql.ErrNoRows {
		return DefaultSnapshot(personas)
	}
	if err != nil {
		slog.Warn("loading snapshot failed, starting fresh", "provider", provider, "error", err)
		return DefaultSnapshot(personas)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		slog.Warn("snapshot corrupt, starting fresh", "provider", provider, "error", err)
		return DefaultSnapshot(personas)
	}
	if snap.Sessions == nil || snap.ActiveSessionIDs == nil {
		slog.Warn("snapshot shape mismatch, starting fresh", "provider", provider)
		return DefaultSnapshot(personas)
	}
	return snap
}

// Providers lists every provider identity with a persisted snapshot.
func (b *Bridge) Providers() ([]string, error) {
	rows, err := b.db.Query("SELECT provider FROM snapshots ORDER BY provider")
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// Delete removes the provider's persisted snapshot.
func (b *Bridge) Delete(provider string) error {
	_, err := b.db.Exec("DELETE FROM snapshots WHERE provider = ?", provider)
	return err
}

// Close closes the database connection.
func (b *Bridge) Close() error {
	return b.db.Close()
}
