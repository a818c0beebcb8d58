package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/worklist"
)

// MockPatientSource is a mock implementation of domain.PatientSource
type MockPatientSource struct {
	mock.Mock
}

func (m *MockPatientSource) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Patient), args.Error(1)
}

func (m *MockPatientSource) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func mrns(patients []domain.Patient) []string {
	out := make([]string, len(patients))
	for i, p := range patients {
		out[i] = p.MRN
	}
	return out
}

func TestWorklistService_GetWorklist(t *testing.T) {
	svc := NewWorklistService(worklist.NewDemoSource(0), testLogger())

	wl, err := svc.GetWorklist(context.Background(), "  EF_LE_35_QRS_GE_130_NO_CRT_REF ")
	require.NoError(t, err)
	assert.Equal(t, domain.FilterCRTCandidates, wl.Filter)
	assert.Equal(t, domain.FilterCRTCandidates.Title(), wl.Title)
	assert.Equal(t, []string{"MRN-100231", "MRN-100304", "MRN-100347"}, mrns(wl.Patients))
	assert.Equal(t, 3, wl.Total)
	assert.False(t, wl.Stale)
	assert.False(t, wl.GeneratedAt.IsZero())
}

func TestWorklistService_UnknownFilter(t *testing.T) {
	src := new(MockPatientSource)
	svc := NewWorklistService(src, testLogger())

	_, err := svc.GetWorklist(context.Background(), "statin_gaps")
	assert.True(t, errors.Is(err, domain.ErrUnknownFilter))
	src.AssertNotCalled(t, "ListPatients", mock.Anything)
}

func TestWorklistService_SourceError(t *testing.T) {
	src := new(MockPatientSource)
	src.On("ListPatients", mock.Anything).Return(nil, domain.ErrUnavailable)
	svc := NewWorklistService(src, testLogger())

	_, err := svc.GetWorklist(context.Background(), string(domain.FilterGDMTGaps))
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
}

func TestWorklistService_StaleSnapshot(t *testing.T) {
	ctx := context.Background()
	src := new(MockPatientSource)
	src.On("ListPatients", mock.Anything).Return(worklist.DemoPatients(), nil).Once()
	src.On("ListPatients", mock.Anything).Return(nil, errors.New("connection reset"))

	resilient := worklist.NewResilientSource(src, worklist.DefaultBreakerConfig(), testLogger())
	svc := NewWorklistService(resilient, testLogger())

	fresh, err := svc.GetWorklist(ctx, string(domain.FilterHFpEFNoPYP))
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	stale, err := svc.GetWorklist(ctx, string(domain.FilterHFpEFNoPYP))
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, mrns(fresh.Patients), mrns(stale.Patients))
}

func TestWorklistService_Summaries(t *testing.T) {
	svc := NewWorklistService(worklist.NewDemoSource(0), testLogger())

	sums, err := svc.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, len(domain.AllWorklistFilters))

	totals := map[domain.WorklistFilter]int{}
	for _, s := range sums {
		totals[s.Filter] = s.Total
	}
	assert.Equal(t, 3, totals[domain.FilterGDMTGaps])
	assert.Equal(t, 3, totals[domain.FilterHFpEFNoPYP])
	assert.Equal(t, 3, totals[domain.FilterCRTCandidates])
	assert.Equal(t, 5, totals[domain.FilterIronDeficiency])
}

func TestWorklistService_ExportXLSX(t *testing.T) {
	svc := NewWorklistService(worklist.NewDemoSource(0), testLogger())

	var buf bytes.Buffer
	wl, err := svc.ExportXLSX(context.Background(), string(domain.FilterIronDeficiency), &buf)
	require.NoError(t, err)
	assert.Equal(t, 5, wl.Total)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(string(domain.FilterIronDeficiency))
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestWorklistService_GetPatient(t *testing.T) {
	patients := worklist.DemoPatients()
	svc := NewWorklistService(worklist.NewDemoSource(0), testLogger())

	got, err := svc.GetPatient(context.Background(), patients[0].ID)
	require.NoError(t, err)
	assert.Equal(t, patients[0].MRN, got.MRN)

	_, err = svc.GetPatient(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
