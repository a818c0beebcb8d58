package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/worklist"
)

// snapshotSource is implemented by sources that can report whether data is stale.
type snapshotSource interface {
	ListPatientsWithStatus(ctx context.Context) (worklist.Snapshot, error)
}

// WorklistSummary is the size of one worklist.
type WorklistSummary struct {
	Filter domain.WorklistFilter `json:"filter"`
	Title  string                `json:"title"`
	Total  int                   `json:"total"`
}

// WorklistService builds care-gap worklists from a patient source.
type WorklistService struct {
	source domain.PatientSource
	logger *logrus.Logger
	now    func() time.Time
}

// NewWorklistService creates a new worklist service
func NewWorklistService(source domain.PatientSource, logger *logrus.Logger) *WorklistService {
	return &WorklistService{
		source: source,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *WorklistService) patients(ctx context.Context) ([]domain.Patient, bool, error) {
	if snap, ok := s.source.(snapshotSource); ok {
		res, err := snap.ListPatientsWithStatus(ctx)
		if err != nil {
			return nil, false, err
		}
		return res.Patients, res.Stale, nil
	}

	patients, err := s.source.ListPatients(ctx)
	if err != nil {
		return nil, false, err
	}
	return patients, false, nil
}

// GetWorklist returns the cohort for a filter name. Unknown names yield domain.ErrUnknownFilter.
func (s *WorklistService) GetWorklist(ctx context.Context, name string) (*domain.Worklist, error) {
	filter, err := domain.ParseWorklistFilter(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	all, stale, err := s.patients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	matched, err := worklist.Apply(filter, all)
	if err != nil {
		return nil, err
	}

	wl := &domain.Worklist{
		Filter:      filter,
		Title:       filter.Title(),
		Patients:    matched,
		Total:       len(matched),
		GeneratedAt: s.now(),
		Stale:       stale,
	}

	s.logger.WithFields(logrus.Fields{
		"filter":   filter,
		"total":    wl.Total,
		"stale":    stale,
		"duration": time.Since(start),
	}).Info("Worklist generated")

	return wl, nil
}

// Summaries returns the size of every worklist from a single patient fetch.
func (s *WorklistService) Summaries(ctx context.Context) ([]WorklistSummary, error) {
	all, _, err := s.patients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	out := make([]WorklistSummary, 0, len(domain.AllWorklistFilters))
	for _, f := range domain.AllWorklistFilters {
		matched, err := worklist.Apply(f, all)
		if err != nil {
			return nil, err
		}
		out = append(out, WorklistSummary{Filter: f, Title: f.Title(), Total: len(matched)})
	}
	return out, nil
}

// ExportXLSX writes the worklist as a spreadsheet and returns the exported worklist.
func (s *WorklistService) ExportXLSX(ctx context.Context, name string, w io.Writer) (*domain.Worklist, error) {
	wl, err := s.GetWorklist(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := worklist.WriteXLSX(w, *wl); err != nil {
		return nil, fmt.Errorf("failed to export worklist: %w", err)
	}
	return wl, nil
}

// GetPatient returns a single patient.
func (s *WorklistService) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	return s.source.GetPatient(ctx, id)
}
