package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps archives in a SQLite database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveArchive(ctx context.Context, runID string, generation int, records []Record) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, generation, saved)
		VALUES (?, ?, (SELECT COALESCE(MAX(saved), 0) + 1 FROM runs))
		ON CONFLICT(run_id) DO UPDATE SET
			generation = excluded.generation,
			saved = excluded.saved
	`, runID, generation)
	if err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM archive WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear archive %s: %w", runID, err)
	}
	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO archive (run_id, rank, fitness, genotype)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, rank) DO UPDATE SET
				fitness = excluded.fitness,
				genotype = excluded.genotype
		`, runID, r.Rank, r.Fitness, r.Genotype)
		if err != nil {
			return fmt.Errorf("save archive %s rank %d: %w", runID, r.Rank, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadArchive(ctx context.Context, runID string) ([]Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT rank, fitness, genotype FROM archive
		WHERE run_id = ?
		ORDER BY rank
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Rank, &r.Fitness, &r.Genotype); err != nil {
			return nil, fmt.Errorf("scan archive %s: %w", runID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (string, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return "", false, err
	}

	var runID string
	err = db.QueryRowContext(ctx, `SELECT run_id FROM runs ORDER BY saved DESC LIMIT 1`).Scan(&runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return runID, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			generation INTEGER NOT NULL,
			saved INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS archive (
			run_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			fitness REAL NOT NULL,
			genotype TEXT NOT NULL,
			PRIMARY KEY (run_id, rank)
		);
	`)
	return err
}
