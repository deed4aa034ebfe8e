package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kbase/internal/models"
)

// OpenDB opens or creates a SQLite database at dbPath with WAL enabled.
// Parent directories are created if they do not exist.
func OpenDB(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return db, nil
}

// SQLiteStorage persists stats in a SQLite table.
type SQLiteStorage struct {
	db     *sql.DB
	ownsDB bool
}

// NewSQLiteStorage opens the database at dbPath and initializes the schema.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStorageFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStorageFromDB uses an already open database; Close leaves it open.
func NewSQLiteStorageFromDB(db *sql.DB) (*SQLiteStorage, error) {
	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS document_stats (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		text_length INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_document_stats_filename ON document_stats(filename);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStorage) AddDocumentStat(ctx context.Context, stat models.DocumentStat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_stats (filename, text_length, chunks) VALUES (?, ?, ?)`,
		stat.Filename, stat.TextLength, stat.ChunkCount,
	)
	return err
}

func (s *SQLiteStorage) ListDocumentStats(ctx context.Context) ([]models.DocumentStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, text_length, chunks FROM document_stats ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := make([]models.DocumentStat, 0)
	for rows.Next() {
		var st models.DocumentStat
		if err := rows.Scan(&st.Filename, &st.TextLength, &st.ChunkCount); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStorage) GetDocumentStat(ctx context.Context, filename string) (*models.DocumentStat, error) {
	var st models.DocumentStat
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, text_length, chunks FROM document_stats WHERE filename = ? ORDER BY seq LIMIT 1`,
		filename,
	).Scan(&st.Filename, &st.TextLength, &st.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, filename)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the database only when this store opened it.
func (s *SQLiteStorage) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
