// Package domain contains the core entities shared by the cardiology risk calculators,
// the care-team worklists and the assessment history.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by stores, sources and services.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownFilter = errors.New("unknown worklist filter")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnavailable   = errors.New("patient source unavailable")

	ErrHistoryDisabled = errors.New("assessment history disabled")
)

// Calculator identifies one of the clinical scoring tools.
type Calculator string

const (
	CalculatorHASBLED  Calculator = "has_bled"
	CalculatorMAGGIC   Calculator = "maggic"
	CalculatorCasePlan Calculator = "case_plan"
	CalculatorMCS      Calculator = "mcs"
	CalculatorHeparin  Calculator = "heparin"
	CalculatorAblation Calculator = "ablation"
)

// IsValid reports whether c names a known calculator.
func (c Calculator) IsValid() bool {
	switch c {
	case CalculatorHASBLED, CalculatorMAGGIC, CalculatorCasePlan, CalculatorMCS, CalculatorHeparin, CalculatorAblation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the calculator.
func (c Calculator) String() string {
	return string(c)
}

// WorklistFilter selects a care-gap cohort.
type WorklistFilter string

const (
	FilterGDMTGaps       WorklistFilter = "gdmt_gaps"
	FilterHFpEFNoPYP     WorklistFilter = "hfpef_65_lvh_no_pyp"
	FilterCRTCandidates  WorklistFilter = "ef_le_35_qrs_ge_130_no_crt_ref"
	FilterIronDeficiency WorklistFilter = "iron_def_no_iv_iron"
)

// AllWorklistFilters lists the supported filters in display order.
var AllWorklistFilters = []WorklistFilter{
	FilterGDMTGaps,
	FilterHFpEFNoPYP,
	FilterCRTCandidates,
	FilterIronDeficiency,
}

// ParseWorklistFilter converts a user supplied name into a filter.
func ParseWorklistFilter(s string) (WorklistFilter, error) {
	f := WorklistFilter(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownFilter)
	}
	return f, nil
}

// IsValid reports whether f is a supported filter.
func (f WorklistFilter) IsValid() bool {
	for _, known := range AllWorklistFilters {
		if f == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the filter.
func (f WorklistFilter) String() string {
	return string(f)
}

// Title returns the worklist heading shown on dashboard tiles and in exports.
func (f WorklistFilter) Title() string {
	switch f {
	case FilterGDMTGaps:
		return "HFrEF patients with GDMT gaps"
	case FilterHFpEFNoPYP:
		return "HFpEF age 65+ with LVH, no PYP scan"
	case FilterCRTCandidates:
		return "EF 35% or less, QRS 130ms or more, no CRT referral"
	case FilterIronDeficiency:
		return "Iron deficiency without IV iron"
	default:
		return "Unknown worklist"
	}
}

// ServiceLine is a cardiology service line.
type ServiceLine string

const (
	ServiceLineHeartFailure       ServiceLine = "heart_failure"
	ServiceLineElectrophysiology  ServiceLine = "electrophysiology"
	ServiceLineCoronary           ServiceLine = "coronary_intervention"
	ServiceLineStructural         ServiceLine = "structural_heart"
	ServiceLinePeripheralVascular ServiceLine = "peripheral_vascular"
	ServiceLineValvular           ServiceLine = "valvular_disease"
)

// IsValid reports whether s is a known service line.
func (s ServiceLine) IsValid() bool {
	switch s {
	case ServiceLineHeartFailure, ServiceLineElectrophysiology, ServiceLineCoronary,
		ServiceLineStructural, ServiceLinePeripheralVascular, ServiceLineValvular:
		return true
	default:
		return false
	}
}
