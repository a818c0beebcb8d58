package service

import (
	"time"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/pkg/riskscore"
)

// MCSRequest asks for a mechanical circulatory support recommendation.
type MCSRequest struct {
	SyntaxScore      int     `json:"syntax_score"`
	EjectionFraction float64 `json:"ejection_fraction"`
}

// HeparinRequest asks for a weight-based heparin bolus.
type HeparinRequest struct {
	WeightKg float64 `json:"weight_kg"`
}

// HeparinResult is the computed bolus.
type HeparinResult struct {
	WeightKg   float64 `json:"weight_kg"`
	UnitsPerKg int     `json:"units_per_kg"`
	BolusUnits int     `json:"bolus_units"`
}

// CalculationResult wraps a calculator output with bookkeeping.
type CalculationResult[T any] struct {
	Calculator   domain.Calculator `json:"calculator"`
	Result       T                 `json:"result"`
	AssessmentID string            `json:"assessment_id,omitempty"`
	Cached       bool              `json:"cached"`
	ComputedAt   time.Time         `json:"computed_at"`
}

// Result aliases for callers outside the package.
type (
	HASBLEDResult  = CalculationResult[riskscore.HASBLEDResult]
	MAGGICResult   = CalculationResult[riskscore.MAGGICResult]
	CasePlanResult = CalculationResult[riskscore.CasePlan]
	MCSResult      = CalculationResult[riskscore.MCSRecommendation]
	HeparinBolus   = CalculationResult[HeparinResult]
	AblationResult = CalculationResult[riskscore.AblationResult]
)
