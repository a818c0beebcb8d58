package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cardio-insights-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite assessment store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		calculator TEXT NOT NULL,
		patient_id TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		input TEXT NOT NULL,
		result TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_patient ON assessments(patient_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_assessments_calculator ON assessments(calculator);
	CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a new assessment.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	if err := prepareRecord(record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assessments (
			id, calculator, patient_id, request_id,
			input, result, score, category, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		string(record.Calculator),
		record.PatientID,
		record.RequestID,
		string(record.Input),
		string(record.Result),
		record.Score,
		record.Category,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves an assessment by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM assessments WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// ListByPatient returns a patient's assessments, newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+` FROM assessments
		WHERE patient_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// List returns all assessments with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+` FROM assessments
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*domain.AssessmentRecord, error) {
	defer rows.Close()

	var result []*domain.AssessmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of stored assessments.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessments").Scan(&count)
	return count, err
}

// Delete removes an assessment by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM assessments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all assessments to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list assessments: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports assessments from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importRecords(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
