// Package worklist builds care-gap cohorts from a patient source.
package worklist

import (
	"fmt"
	"sort"

	"github.com/cardio-insights-server/internal/domain"
)

// Predicate reports whether a patient belongs on a worklist.
type Predicate func(p domain.Patient) bool

// Clinical thresholds used by the worklist predicates.
const (
	HFrEFMaxEF        = 40.0
	HFpEFMinEF        = 50.0
	HFpEFMinAge       = 65
	CRTMaxEF          = 35.0
	CRTMinQRS         = 130
	AbsoluteIronLimit = 100.0
	FunctionalIronMax = 300.0
	FunctionalTSATMax = 20.0
)

var predicates = map[domain.WorklistFilter]Predicate{
	domain.FilterGDMTGaps:       HasGDMTGap,
	domain.FilterHFpEFNoPYP:     NeedsPYPScan,
	domain.FilterCRTCandidates:  NeedsCRTReferral,
	domain.FilterIronDeficiency: NeedsIVIron,
}

// HasGDMTGap matches HFrEF patients missing at least one GDMT pillar.
func HasGDMTGap(p domain.Patient) bool {
	return p.EjectionFraction <= HFrEFMaxEF && len(p.GDMT.MissingPillars()) > 0
}

// NeedsPYPScan matches older HFpEF patients with LVH who have not been screened for amyloid.
func NeedsPYPScan(p domain.Patient) bool {
	return p.EjectionFraction >= HFpEFMinEF && p.Age >= HFpEFMinAge && p.LVH && !p.PYPScanDone
}

// NeedsCRTReferral matches low-EF, wide-QRS patients without a CRT referral.
func NeedsCRTReferral(p domain.Patient) bool {
	return p.EjectionFraction <= CRTMaxEF && p.QRSDurationMS >= CRTMinQRS && !p.CRTReferral
}

// IronDeficient applies the HF iron deficiency definition: ferritin below 100, or ferritin
// 100 to 299 with transferrin saturation below 20%.
func IronDeficient(p domain.Patient) bool {
	if p.Ferritin < AbsoluteIronLimit {
		return true
	}
	return p.Ferritin < FunctionalIronMax && p.TransferrinSaturation < FunctionalTSATMax
}

// NeedsIVIron matches iron-deficient patients who have not received IV iron.
func NeedsIVIron(p domain.Patient) bool {
	return IronDeficient(p) && !p.IVIronGiven
}

// PredicateFor returns the predicate backing a filter.
func PredicateFor(filter domain.WorklistFilter) (Predicate, error) {
	pred, ok := predicates[filter]
	if !ok {
		return nil, fmt.Errorf("%q: %w", filter, domain.ErrUnknownFilter)
	}
	return pred, nil
}

// Apply selects the patients matching filter, most recent encounter first and MRN as tie-break.
// The input slice is not modified.
func Apply(filter domain.WorklistFilter, patients []domain.Patient) ([]domain.Patient, error) {
	pred, err := PredicateFor(filter)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Patient, 0, len(patients))
	for _, p := range patients {
		if pred(p) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].LastEncounter.Equal(matched[j].LastEncounter) {
			return matched[i].LastEncounter.After(matched[j].LastEncounter)
		}
		return matched[i].MRN < matched[j].MRN
	})

	return matched, nil
}
