package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"tagify/internal/logging"
	"tagify/internal/metrics"
)

// Default timeout for single database operations.
const defaultTimeout = 5 * time.Second

// Database manages all metadata persistence for the tagify server.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if necessary) the SQLite database at dbPath and
// runs schema setup. The parent directory must already exist and be
// writable; use startup.LoadConfig for that validation.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// busy_timeout prevents "database is locked" errors when scan
	// workers and request handlers write concurrently.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS libraries (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		display_name TEXT NOT NULL,
		scanning INTEGER NOT NULL DEFAULT 0,
		scan_total INTEGER NOT NULL DEFAULT 0,
		scan_done INTEGER NOT NULL DEFAULT 0,
		scan_error TEXT,
		indexed_count INTEGER NOT NULL DEFAULT 0,
		last_scanned INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		library_id TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
		relative_path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		created_time INTEGER NOT NULL DEFAULT 0,
		modified_time INTEGER NOT NULL DEFAULT 0,
		original_key TEXT NOT NULL DEFAULT '',
		thumb_key TEXT NOT NULL DEFAULT '',
		last_seen INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS image_tags (
		image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (image_id, tag_id)
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.EnsureIndexes(ctx)
}

// EnsureIndexes creates the secondary indexes the query engine relies
// on. Idempotent; safe to call on every process start.
func (d *Database) EnsureIndexes(ctx context.Context) error {
	stmts := []string{
		// Library filter combined with the id-descending sort used by
		// cursor pagination.
		"CREATE INDEX IF NOT EXISTS idx_images_library_id_id ON images(library_id, id DESC)",
		// Missing-file reaping scans by library and last_seen.
		"CREATE INDEX IF NOT EXISTS idx_images_library_last_seen ON images(library_id, last_seen)",
		// Tag membership lookups in both directions.
		"CREATE INDEX IF NOT EXISTS idx_image_tags_tag ON image_tags(tag_id, image_id)",
		"CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name)",
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// ImageID builds the deterministic composite id for an image. The
// relative path is normalized to forward slashes so rescans of the
// same file always hit the same document.
func ImageID(libraryID, relativePath string) string {
	return libraryID + ":" + NormalizePath(relativePath)
}

// NormalizePath converts path separators to the canonical forward
// slash. Applied at write time and again on lookups so ids written
// with either platform's separator resolve to the same document.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// observeQuery starts a metrics observation for a named query and
// returns the completion func to call with the query's error.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
		metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
