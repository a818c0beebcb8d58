package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/cardio-insights-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL assessment store.
// It expects the risk_assessments table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL assessment store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores a new assessment.
func (s *PostgresStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	if err := prepareRecord(record); err != nil {
		return err
	}

	query := `
		INSERT INTO risk_assessments (
			id, calculator, patient_id, request_id,
			input, result, score, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		string(record.Calculator),
		record.PatientID,
		record.RequestID,
		[]byte(record.Input),
		[]byte(record.Result),
		record.Score,
		record.Category,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// Get retrieves an assessment by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	query := "SELECT " + selectColumns + " FROM risk_assessments WHERE id = $1"

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return rec, nil
}

// ListByPatient returns a patient's assessments, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	limit, offset = normalizePage(limit, offset)
	query := "SELECT " + selectColumns + ` FROM risk_assessments
		WHERE patient_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return collect(rows)
}

// List returns all assessments with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	limit, offset = normalizePage(limit, offset)
	query := "SELECT " + selectColumns + ` FROM risk_assessments
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return collect(rows)
}

// Count returns the total number of stored assessments.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM risk_assessments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assessments: %w", err)
	}
	return count, nil
}

// Delete removes an assessment by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM risk_assessments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all assessments to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list assessments: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports assessments from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importRecords(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
