package metadatastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/charterintel/charterintel/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for prediction runs
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Format: file:path?param=value
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite anyway
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// In-memory databases report "memory" instead of "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" && journalMode != "delete" && journalMode != "memory" {
		db.Close()
		return nil, fmt.Errorf("unexpected journal mode: got %s", journalMode)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") {
			// 10ms, 20ms, 40ms, ...
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prediction_runs (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL,
		csv BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_prediction_runs_created_at ON prediction_runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a run together with its annotated CSV
func (s *SQLiteStore) SaveRun(run *models.PredictionRun, annotatedCSV []byte) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO prediction_runs (id, filename, row_count, created_at, data, csv)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err = s.retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			run.ID,
			run.Filename,
			run.RowCount,
			run.CreatedAt.UTC(),
			string(data),
			annotatedCSV,
		)
		return err
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun retrieves run metadata by ID
func (s *SQLiteStore) GetRun(id string) (*models.PredictionRun, error) {
	var data string
	query := `SELECT data FROM prediction_runs WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run models.PredictionRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// GetRunCSV retrieves the annotated CSV of a run
func (s *SQLiteStore) GetRunCSV(id string) ([]byte, error) {
	var csv []byte
	query := `SELECT csv FROM prediction_runs WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&csv)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run csv: %w", err)
	}

	return csv, nil
}

// ListRuns lists the most recent runs first
func (s *SQLiteStore) ListRuns(limit int) ([]*models.PredictionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT data FROM prediction_runs ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.PredictionRun, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}

		var run models.PredictionRun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			continue
		}

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// DeleteRunsBefore removes runs created before cutoff and returns how many were deleted
func (s *SQLiteStore) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM prediction_runs WHERE created_at < ?`, cutoff.UTC())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	}, 5)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return deleted, nil
}
