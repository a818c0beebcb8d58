package riskscore

import "math"

// MAGGICInput holds the clinical variables used by the MAGGIC heart-failure score.
type MAGGICInput struct {
	Age              float64 `json:"age"`
	Male             bool    `json:"male"`
	EjectionFraction float64 `json:"ejection_fraction"`
	NYHAClass        int     `json:"nyha_class"`
	Creatinine       float64 `json:"creatinine"` // mg/dL
	Diabetes         bool    `json:"diabetes"`
	COPD             bool    `json:"copd"`
	CurrentSmoker    bool    `json:"current_smoker"`
	HFDurationMonths float64 `json:"hf_duration_months"`
	SystolicBP       float64 `json:"systolic_bp"`
	BMI              float64 `json:"bmi"`
	ACEIOrARB        bool    `json:"ace_i_or_arb"`
	BetaBlocker      bool    `json:"beta_blocker"`
}

// MAGGICResult is the outcome of a MAGGIC calculation.
type MAGGICResult struct {
	Score              float64   `json:"score"`
	OneYearMortality   float64   `json:"one_year_mortality"`
	ThreeYearMortality float64   `json:"three_year_mortality"`
	Category           RiskLevel `json:"category"`
	Interpretation     string    `json:"interpretation"`
}

// Term weights and thresholds for the MAGGIC running score.
const (
	maggicAgePivot        = 70.0
	maggicAgeWeight       = 0.625
	maggicMalePoints      = 1.5
	maggicEFPivot         = 45.0
	maggicEFWeight        = 0.115
	maggicNYHA3Points     = 2.0
	maggicNYHA4Points     = 3.5
	maggicCreatininePivot = 1.4
	maggicCreatinineWt    = 1.2
	maggicDiabetesPoints  = 1.7
	maggicCOPDPoints      = 1.4
	maggicSmokerPoints    = 1.1
	maggicLongHFMonths    = 18.0
	maggicLongHFPoints    = 0.9
	maggicSBPPivot        = 120.0
	maggicSBPWeight       = 0.035
	maggicBMIPivot        = 30.0
	maggicBMIWeight       = 0.045
	maggicACEIPoints      = -1.2
	maggicBetaBlockPoints = -0.8
)

// MAGGICScore returns the raw running score. Inputs are carried through the arithmetic as
// given; range checks are the caller's responsibility.
func MAGGICScore(in MAGGICInput) float64 {
	score := 0.0

	score += math.Max(0, in.Age-maggicAgePivot) * maggicAgeWeight
	if in.Male {
		score += maggicMalePoints
	}
	score += math.Max(0, maggicEFPivot-in.EjectionFraction) * maggicEFWeight

	switch in.NYHAClass {
	case 3:
		score += maggicNYHA3Points
	case 4:
		score += maggicNYHA4Points
	}

	score += math.Max(0, in.Creatinine-maggicCreatininePivot) * maggicCreatinineWt

	if in.Diabetes {
		score += maggicDiabetesPoints
	}
	if in.COPD {
		score += maggicCOPDPoints
	}
	if in.CurrentSmoker {
		score += maggicSmokerPoints
	}
	if in.HFDurationMonths > maggicLongHFMonths {
		score += maggicLongHFPoints
	}

	score += math.Max(0, maggicSBPPivot-in.SystolicBP) * maggicSBPWeight
	score += math.Max(0, maggicBMIPivot-in.BMI) * maggicBMIWeight

	// protective therapies
	if in.ACEIOrARB {
		score += maggicACEIPoints
	}
	if in.BetaBlocker {
		score += maggicBetaBlockPoints
	}

	return score
}

// OneYearMortality converts a MAGGIC score into 1-year mortality percent, clamped to [0.1, 95].
func OneYearMortality(score float64) float64 {
	return clampFloat(logistic(2.34, 0.184, score), 0.1, 95)
}

// ThreeYearMortality converts a MAGGIC score into 3-year mortality percent, clamped to [0.2, 95].
func ThreeYearMortality(score float64) float64 {
	return clampFloat(logistic(1.15, 0.171, score), 0.2, 95)
}

// MAGGIC computes the score, both mortality estimates and the category.
func MAGGIC(in MAGGICInput) MAGGICResult {
	score := MAGGICScore(in)
	oneYear := OneYearMortality(score)
	category := MAGGICCategory(oneYear)

	return MAGGICResult{
		Score:              score,
		OneYearMortality:   oneYear,
		ThreeYearMortality: ThreeYearMortality(score),
		Category:           category,
		Interpretation:     maggicInterpretations[category],
	}
}

// MAGGICCategory buckets a 1-year mortality percentage.
func MAGGICCategory(oneYearMortality float64) RiskLevel {
	switch {
	case oneYearMortality < 10:
		return RiskLow
	case oneYearMortality < 20:
		return RiskIntermediate
	case oneYearMortality < 40:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

var maggicInterpretations = map[RiskLevel]string{
	RiskLow:          "Low predicted mortality. Continue guideline-directed medical therapy and routine follow-up.",
	RiskIntermediate: "Intermediate predicted mortality. Optimize GDMT and consider closer follow-up.",
	RiskHigh:         "High predicted mortality. Intensify therapy and consider advanced HF evaluation.",
	RiskVeryHigh:     "Very high predicted mortality. Refer for advanced HF therapies or palliative care discussion.",
}

// logistic returns 100 / (1 + exp(intercept - slope*score)).
func logistic(intercept, slope, score float64) float64 {
	return 100 / (1 + math.Exp(intercept-slope*score))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
