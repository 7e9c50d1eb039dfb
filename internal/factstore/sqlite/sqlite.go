// Package sqlite stores facts as JSON rows in an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"casebot/internal/domain"
	"casebot/internal/factstore"
	"casebot/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	body       TEXT    NOT NULL,
	created_at INTEGER NOT NULL
)`

// Backend keeps each fact as one JSON document per row, ordered by row id.
type Backend struct {
	db   *sql.DB
	path string
	log  *logger.Logger
}

var _ factstore.Backend = (*Backend)(nil)

// Open opens (and if needed creates) the database at path.
func Open(path string, log *logger.Logger) (*Backend, error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Backend{db: db, path: path, log: log.WithField("path", path)}, nil
}

func (b *Backend) Location() string { return b.path }

func (b *Backend) Close() error { return b.db.Close() }

// Load reads all rows in insertion order. Rows whose body does not parse are skipped.
func (b *Backend) Load(ctx context.Context) ([]domain.Fact, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT body FROM facts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var lines [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		lines = append(lines, []byte(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	facts, skipped := factstore.ParseAll(lines)
	if skipped > 0 {
		b.log.WithField("skipped", skipped).Debug("skipped malformed fact rows")
	}
	return facts, nil
}

// Append inserts facts in a single transaction.
func (b *Backend) Append(ctx context.Context, facts []domain.Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", factstore.ErrPersist, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO facts (body, created_at) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare: %v", factstore.ErrPersist, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, fact := range facts {
		body, err := factstore.Encode(fact)
		if err != nil {
			return 0, fmt.Errorf("%w: encode: %v", factstore.ErrPersist, err)
		}
		if _, err := stmt.ExecContext(ctx, string(body), now); err != nil {
			return 0, fmt.Errorf("%w: insert: %v", factstore.ErrPersist, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", factstore.ErrPersist, err)
	}
	return len(facts), nil
}

// insertRaw stores an arbitrary body, bypassing encoding. Used by tests to plant bad rows.
func (b *Backend) insertRaw(ctx context.Context, body string) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO facts (body, created_at) VALUES (?, ?)`, body, time.Now().Unix())
	return err
}
