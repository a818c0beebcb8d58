// Package history stores computed calculator assessments so they can be reviewed per patient
// and exported for audit.
package history

import (
	"context"
	"io"
	"time"

	"github.com/cardio-insights-server/internal/domain"
)

// Store defines the interface for assessment storage operations.
type Store interface {
	// Save stores a new assessment. An ID and creation time are assigned when missing.
	Save(ctx context.Context, record *domain.AssessmentRecord) error

	// Get retrieves an assessment by ID, returning domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.AssessmentRecord, error)

	// ListByPatient returns a patient's assessments, newest first.
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error)

	// List returns all assessments with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error)

	// Count returns the total number of stored assessments.
	Count(ctx context.Context) (int64, error)

	// Delete removes an assessment by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every assessment to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON loads assessments from a previous export, skipping IDs already present.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version     string                     `json:"version"`
	ExportedAt  time.Time                  `json:"exported_at"`
	Count       int                        `json:"count"`
	Assessments []*domain.AssessmentRecord `json:"assessments"`
}

// exportVersion is bumped when the export layout changes.
const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// DefaultListLimit applies when callers pass a non-positive limit.
const DefaultListLimit = 50

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
