package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
	apperrors "github.com/beesaferoot/diff-sync/pkg/errors"
)

// SQLiteStore persists documents to a SQLite file via the pure-Go
// modernc.org/sqlite driver, so the server binary needs no cgo
// toolchain to build or deploy.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and ensures
// its schema and default document exist. Pass ":memory:" for a
// throwaway in-process database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStore, "open sqlite database", err)
	}
	// modernc.org/sqlite connections are not safe for concurrent writes
	// across multiple *sql.DB connections against one file; serialize
	// through a single connection, same as the reference implementation's
	// single rusqlite::Connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		content TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStore, "create documents table", err)
	}

	now := time.Now().Unix()
	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO documents (name, content, version, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)`,
		"main", DefaultDocumentContent, now, now,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStore, "seed default document", err)
	}
	return nil
}

func (s *SQLiteStore) Load(name string) (diffsync.Document, error) {
	row := s.db.QueryRow(`SELECT content, version FROM documents WHERE name = ?`, name)

	var content string
	var version uint64
	switch err := row.Scan(&content, &version); err {
	case nil:
		return diffsync.NewDocumentWithVersion(content, version), nil
	case sql.ErrNoRows:
		return s.createNamed(name)
	default:
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "load document", err)
	}
}

func (s *SQLiteStore) createNamed(name string) (diffsync.Document, error) {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO documents (name, content, version, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)`,
		name, DefaultDocumentContent, now, now,
	)
	if err != nil {
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "create document", err)
	}
	return diffsync.NewDocument(DefaultDocumentContent), nil
}

func (s *SQLiteStore) Update(name, newContent string) (diffsync.Document, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "begin update transaction", err)
	}
	defer tx.Rollback()

	var currentVersion uint64
	err = tx.QueryRow(`SELECT version FROM documents WHERE name = ?`, name).Scan(&currentVersion)
	if err == sql.ErrNoRows {
		currentVersion = 0
	} else if err != nil {
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "read current version", err)
	}

	newVersion := currentVersion + 1
	now := time.Now().Unix()
	_, err = tx.Exec(
		`INSERT INTO documents (name, content, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET content = excluded.content, version = excluded.version, updated_at = excluded.updated_at`,
		name, newContent, newVersion, now, now,
	)
	if err != nil {
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "update document", err)
	}

	if err := tx.Commit(); err != nil {
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "commit update transaction", err)
	}
	return diffsync.NewDocumentWithVersion(newContent, newVersion), nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return Stats{}, apperrors.Wrap(apperrors.CodeStore, "count documents", err)
	}

	var latestUnix sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(updated_at) FROM documents`).Scan(&latestUnix); err != nil {
		return Stats{}, apperrors.Wrap(apperrors.CodeStore, "read latest update", err)
	}

	var latest time.Time
	if latestUnix.Valid {
		latest = time.Unix(latestUnix.Int64, 0)
	}
	return Stats{TotalDocuments: count, LatestUpdate: latest}, nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite database: %w", err)
	}
	return nil
}
