// Package riskscore implements the cardiology risk scores and planning heuristics used by the
// dashboard calculators. Every function in this package is pure: the result depends only on
// the arguments and nothing is cached or mutated between calls.
//
// References:
//   - Pisters R. et al. (2010) A novel user-friendly score (HAS-BLED) to assess 1-year risk of
//     major bleeding in patients with atrial fibrillation. Chest 138(5):1093-100.
//   - Pocock S.J. et al. (2013) Predicting survival in heart failure: a risk score based on
//     39 372 patients from 30 studies. Eur Heart J 34(19):1404-13.
package riskscore

// RiskLevel is a coarse risk category shared by the calculators.
type RiskLevel string

const (
	RiskLow          RiskLevel = "Low"
	RiskModerate     RiskLevel = "Moderate"
	RiskIntermediate RiskLevel = "Intermediate"
	RiskHigh         RiskLevel = "High"
	RiskVeryHigh     RiskLevel = "Very High"
)

// String returns the display form of the level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known levels.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskModerate, RiskIntermediate, RiskHigh, RiskVeryHigh:
		return true
	default:
		return false
	}
}

// HASBLEDInput holds the seven HAS-BLED risk factors.
type HASBLEDInput struct {
	Hypertension       bool `json:"hypertension"`
	AbnormalRenalLiver bool `json:"abnormal_renal_liver"`
	Stroke             bool `json:"stroke"`
	BleedingHistory    bool `json:"bleeding_history"`
	LabileINR          bool `json:"labile_inr"`
	Elderly            bool `json:"elderly"` // age > 65
	DrugsOrAlcohol     bool `json:"drugs_or_alcohol"`
}

// BleedRiskBand is the published annual major-bleeding range for a HAS-BLED category.
type BleedRiskBand struct {
	MinPercent float64 `json:"min_percent"`
	MaxPercent float64 `json:"max_percent"`
}

// HASBLEDResult is the outcome of a HAS-BLED calculation.
type HASBLEDResult struct {
	Score          int           `json:"score"`
	Category       RiskLevel     `json:"category"`
	AnnualBleed    BleedRiskBand `json:"annual_bleed_risk"`
	Factors        []string      `json:"factors"`
	Recommendation string        `json:"recommendation"`
}

// HASBLEDMaxScore is the highest achievable HAS-BLED score.
const HASBLEDMaxScore = 7

// factors lists the true risk factors in the conventional H-A-S-B-L-E-D order.
func (in HASBLEDInput) factors() []string {
	named := []struct {
		name string
		set  bool
	}{
		{"Hypertension", in.Hypertension},
		{"Abnormal renal/liver function", in.AbnormalRenalLiver},
		{"Stroke", in.Stroke},
		{"Bleeding history", in.BleedingHistory},
		{"Labile INR", in.LabileINR},
		{"Elderly (>65)", in.Elderly},
		{"Drugs/alcohol", in.DrugsOrAlcohol},
	}

	out := make([]string, 0, len(named))
	for _, f := range named {
		if f.set {
			out = append(out, f.name)
		}
	}
	return out
}

// HASBLED scores bleeding risk as the count of present factors.
func HASBLED(in HASBLEDInput) HASBLEDResult {
	factors := in.factors()
	score := len(factors)
	category := HASBLEDCategory(score)

	return HASBLEDResult{
		Score:          score,
		Category:       category,
		AnnualBleed:    hasBLEDBands[category],
		Factors:        factors,
		Recommendation: hasBLEDRecommendations[category],
	}
}

// HASBLEDCategory maps a score to its category: <=2 Low, 3 Moderate, >=4 High.
func HASBLEDCategory(score int) RiskLevel {
	switch {
	case score <= 2:
		return RiskLow
	case score == 3:
		return RiskModerate
	default:
		return RiskHigh
	}
}

var hasBLEDBands = map[RiskLevel]BleedRiskBand{
	RiskLow:      {MinPercent: 1.0, MaxPercent: 3.5},
	RiskModerate: {MinPercent: 3.5, MaxPercent: 8.5},
	RiskHigh:     {MinPercent: 8.5, MaxPercent: 12.5},
}

var hasBLEDRecommendations = map[RiskLevel]string{
	RiskLow:      "Anticoagulation generally appropriate; routine follow-up.",
	RiskModerate: "Anticoagulation reasonable with caution; address modifiable bleeding risk factors.",
	RiskHigh:     "High bleeding risk; correct modifiable factors and review closely, consider LAA occlusion.",
}
