package worklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-insights-server/internal/domain"
)

func mrns(patients []domain.Patient) []string {
	out := make([]string, len(patients))
	for i, p := range patients {
		out[i] = p.MRN
	}
	return out
}

func TestApply_DemoCohort(t *testing.T) {
	tests := []struct {
		filter   domain.WorklistFilter
		expected []string
	}{
		{domain.FilterGDMTGaps, []string{"MRN-100231", "MRN-100331", "MRN-100245"}},
		{domain.FilterHFpEFNoPYP, []string{"MRN-100277", "MRN-100283", "MRN-100352"}},
		{domain.FilterCRTCandidates, []string{"MRN-100231", "MRN-100304", "MRN-100347"}},
		{domain.FilterIronDeficiency, []string{"MRN-100231", "MRN-100304", "MRN-100245", "MRN-100352", "MRN-100318"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			got, err := Apply(tt.filter, DemoPatients())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mrns(got))
		})
	}
}

func TestApply_UnknownFilter(t *testing.T) {
	_, err := Apply("tavr_candidates", DemoPatients())
	assert.ErrorIs(t, err, domain.ErrUnknownFilter)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	patients := DemoPatients()
	before := mrns(patients)

	_, err := Apply(domain.FilterIronDeficiency, patients)
	require.NoError(t, err)
	assert.Equal(t, before, mrns(patients))
}

func TestApply_OrderByEncounterThenMRN(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	patients := []domain.Patient{
		{MRN: "B", EjectionFraction: 30, LastEncounter: day},
		{MRN: "A", EjectionFraction: 30, LastEncounter: day},
		{MRN: "C", EjectionFraction: 30, LastEncounter: day.Add(time.Hour)},
	}

	got, err := Apply(domain.FilterGDMTGaps, patients)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, mrns(got))
}

func TestPredicates_Boundaries(t *testing.T) {
	allGDMT := domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true, MRA: true, SGLT2i: true}

	tests := []struct {
		name     string
		pred     Predicate
		patient  domain.Patient
		expected bool
	}{
		{"GDMT EF 40 missing MRA", HasGDMTGap, domain.Patient{EjectionFraction: 40, GDMT: domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true, SGLT2i: true}}, true},
		{"GDMT EF 41", HasGDMTGap, domain.Patient{EjectionFraction: 41}, false},
		{"GDMT complete", HasGDMTGap, domain.Patient{EjectionFraction: 25, GDMT: allGDMT}, false},

		{"HFpEF at thresholds", NeedsPYPScan, domain.Patient{EjectionFraction: 50, Age: 65, LVH: true}, true},
		{"HFpEF age 64", NeedsPYPScan, domain.Patient{EjectionFraction: 55, Age: 64, LVH: true}, false},
		{"HFpEF EF 49", NeedsPYPScan, domain.Patient{EjectionFraction: 49, Age: 70, LVH: true}, false},
		{"HFpEF no LVH", NeedsPYPScan, domain.Patient{EjectionFraction: 55, Age: 70}, false},
		{"HFpEF PYP done", NeedsPYPScan, domain.Patient{EjectionFraction: 55, Age: 70, LVH: true, PYPScanDone: true}, false},

		{"CRT at thresholds", NeedsCRTReferral, domain.Patient{EjectionFraction: 35, QRSDurationMS: 130}, true},
		{"CRT QRS 129", NeedsCRTReferral, domain.Patient{EjectionFraction: 30, QRSDurationMS: 129}, false},
		{"CRT EF 36", NeedsCRTReferral, domain.Patient{EjectionFraction: 36, QRSDurationMS: 150}, false},
		{"CRT referred", NeedsCRTReferral, domain.Patient{EjectionFraction: 30, QRSDurationMS: 150, CRTReferral: true}, false},

		{"Iron ferritin 99", NeedsIVIron, domain.Patient{Ferritin: 99, TransferrinSaturation: 40}, true},
		{"Iron ferritin 100 TSAT 19", NeedsIVIron, domain.Patient{Ferritin: 100, TransferrinSaturation: 19}, true},
		{"Iron ferritin 100 TSAT 20", NeedsIVIron, domain.Patient{Ferritin: 100, TransferrinSaturation: 20}, false},
		{"Iron ferritin 299 TSAT 10", NeedsIVIron, domain.Patient{Ferritin: 299, TransferrinSaturation: 10}, true},
		{"Iron ferritin 300 TSAT 10", NeedsIVIron, domain.Patient{Ferritin: 300, TransferrinSaturation: 10}, false},
		{"Iron already given", NeedsIVIron, domain.Patient{Ferritin: 50, IVIronGiven: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pred(tt.patient))
		})
	}
}
