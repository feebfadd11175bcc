// Package storage owns the SQLite database: the durable huddle history log
// and the schema (via embedded migrations) for the vector index tables the
// retrieval package operates on.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for the huddle history log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "assist.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// DB exposes the underlying connection for the vector store, which shares
// this database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppendHuddle adds a finished interaction to the history log. A persistence
// failure here must never invalidate the reply already shown to the user;
// callers log and continue.
func (s *Store) AppendHuddle(r HuddleRecord) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO huddle_log (id, created_at, screenshot_text, user_draft, ai_suggested, user_final)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_final = excluded.user_final`,
		r.ID, createdAt.Format(time.RFC3339), r.ScreenshotText, r.UserDraft, r.AISuggested, r.UserFinal)
	if err != nil {
		return fmt.Errorf("appending huddle %s: %w", r.ID, err)
	}
	return nil
}

// ListHuddles returns the most recent interactions, newest first. A query
// filters by keyword across all text fields; pass "" for no filter.
func (s *Store) ListHuddles(query string, limit int) ([]HuddleRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	sqlQuery := `SELECT id, created_at, screenshot_text, user_draft, ai_suggested, user_final
		FROM huddle_log`
	args := []any{}
	if query != "" {
		sqlQuery += ` WHERE screenshot_text LIKE ? OR user_draft LIKE ? OR ai_suggested LIKE ? OR user_final LIKE ?`
		like := "%" + query + "%"
		args = append(args, like, like, like, like)
	}
	sqlQuery += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("listing huddles: %w", err)
	}
	defer rows.Close()

	var records []HuddleRecord
	for rows.Next() {
		var r HuddleRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &createdAt, &r.ScreenshotText, &r.UserDraft, &r.AISuggested, &r.UserFinal); err != nil {
			return nil, fmt.Errorf("scanning huddle row: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		r.CreatedAt = t
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetHuddle returns one history record by id.
func (s *Store) GetHuddle(id string) (HuddleRecord, error) {
	var r HuddleRecord
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, created_at, screenshot_text, user_draft, ai_suggested, user_final
		FROM huddle_log WHERE id = ?`, id).
		Scan(&r.ID, &createdAt, &r.ScreenshotText, &r.UserDraft, &r.AISuggested, &r.UserFinal)
	if err == sql.ErrNoRows {
		return HuddleRecord{}, ErrNotFound
	}
	if err != nil {
		return HuddleRecord{}, fmt.Errorf("getting huddle %s: %w", id, err)
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return HuddleRecord{}, fmt.Errorf("parsing created_at for %s: %w", id, err)
	}
	r.CreatedAt = t
	return r, nil
}

// CountHuddles returns the number of logged interactions.
func (s *Store) CountHuddles() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM huddle_log").Scan(&count)
	return count, err
}
