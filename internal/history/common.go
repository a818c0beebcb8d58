package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/cardio-insights-server/internal/domain"
)

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, calculator, patient_id, request_id, input, result, score, category, created_at`

// scanRecord scans a row into an AssessmentRecord.
func scanRecord(s scanner) (*domain.AssessmentRecord, error) {
	rec := &domain.AssessmentRecord{}
	var calculator string
	var input, result []byte

	err := s.Scan(
		&rec.ID, &calculator, &rec.PatientID, &rec.RequestID,
		&input, &result, &rec.Score, &rec.Category, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Calculator = domain.Calculator(calculator)
	rec.Input = json.RawMessage(input)
	rec.Result = json.RawMessage(result)
	return rec, nil
}

// prepareRecord fills in the generated fields before insert.
func prepareRecord(rec *domain.AssessmentRecord) error {
	if rec == nil {
		return fmt.Errorf("assessment record is required")
	}
	if !rec.Calculator.IsValid() {
		return fmt.Errorf("unknown calculator %q: %w", rec.Calculator, domain.ErrInvalidInput)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if len(rec.Input) == 0 {
		rec.Input = json.RawMessage("{}")
	}
	if len(rec.Result) == 0 {
		rec.Result = json.RawMessage("{}")
	}
	return nil
}

func writeExport(writer io.Writer, all []*domain.AssessmentRecord) error {
	export := &Export{
		Version:     exportVersion,
		ExportedAt:  time.Now(),
		Count:       len(all),
		Assessments: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importRecords replays an export through store, skipping records whose ID already exists.
func importRecords(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w: %v", domain.ErrInvalidInput, err)
	}

	for _, rec := range export.Assessments {
		if rec.ID != "" {
			_, err := store.Get(ctx, rec.ID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
		}

		if err := store.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
