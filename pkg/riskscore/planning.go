package riskscore

import (
	"math"
	"strings"
)

// ProcedureType is the revascularization strategy for a coronary case.
type ProcedureType string

const (
	ProcedurePCI  ProcedureType = "PCI"
	ProcedureCABG ProcedureType = "CABG"
)

// IsValid reports whether p is PCI or CABG.
func (p ProcedureType) IsValid() bool {
	return p == ProcedurePCI || p == ProcedureCABG
}

// MCSDevice is a mechanical circulatory support device.
type MCSDevice string

const (
	MCSNone      MCSDevice = "None"
	MCSImpellaCP MCSDevice = "Impella CP"
	MCSIABP      MCSDevice = "IABP"
)

// MCSRecommendation is the support-device selection for a PCI case.
type MCSRecommendation struct {
	Device    MCSDevice `json:"device"`
	Required  bool      `json:"required"`
	Rationale string    `json:"rationale"`
}

// SelectMCS chooses mechanical circulatory support from lesion complexity and LV function.
// Impella takes precedence over IABP when both conditions hold.
func SelectMCS(syntaxScore int, ejectionFraction float64) MCSRecommendation {
	switch {
	case syntaxScore > 32 && ejectionFraction < 35:
		return MCSRecommendation{Device: MCSImpellaCP, Required: true, Rationale: "High-risk PCI with reduced EF"}
	case syntaxScore > 40:
		return MCSRecommendation{Device: MCSIABP, Required: true, Rationale: "Very complex PCI"}
	default:
		return MCSRecommendation{Device: MCSNone, Required: false, Rationale: "No mechanical support needed"}
	}
}

// ConduitType names a CABG bypass conduit.
type ConduitType string

const (
	ConduitLIMA   ConduitType = "LIMA"
	ConduitRIMA   ConduitType = "RIMA"
	ConduitRadial ConduitType = "Radial"
	ConduitSVG    ConduitType = "SVG"
)

// ConduitPatency holds historical graft patency percentages.
type ConduitPatency struct {
	Conduit  ConduitType `json:"conduit"`
	OneYear  int         `json:"one_year"`
	FiveYear int         `json:"five_year"`
	TenYear  int         `json:"ten_year"`
}

var conduitPatency = []ConduitPatency{
	{Conduit: ConduitLIMA, OneYear: 98, FiveYear: 95, TenYear: 90},
	{Conduit: ConduitRIMA, OneYear: 96, FiveYear: 90, TenYear: 85},
	{Conduit: ConduitRadial, OneYear: 92, FiveYear: 85, TenYear: 80},
	{Conduit: ConduitSVG, OneYear: 90, FiveYear: 75, TenYear: 60},
}

// LookupConduitPatency returns the patency row for a conduit, matched case-insensitively.
// Unknown conduits return zero percentages and ok=false.
func LookupConduitPatency(conduit string) (ConduitPatency, bool) {
	name := strings.TrimSpace(conduit)
	for _, row := range conduitPatency {
		if strings.EqualFold(string(row.Conduit), name) {
			return row, true
		}
	}
	return ConduitPatency{Conduit: ConduitType(name)}, false
}

// ConduitPatencyTable returns a copy of the full reference table.
func ConduitPatencyTable() []ConduitPatency {
	out := make([]ConduitPatency, len(conduitPatency))
	copy(out, conduitPatency)
	return out
}

// HeparinUnitsPerKg is the weight-based unfractionated heparin bolus used in the cath lab.
const HeparinUnitsPerKg = 70

// HeparinBolus returns the bolus in units, rounded to the nearest unit.
func HeparinBolus(weightKg float64) int {
	return int(math.Round(weightKg * HeparinUnitsPerKg))
}

// SyntaxTertile buckets a SYNTAX score into the trial tertiles.
func SyntaxTertile(score int) RiskLevel {
	switch {
	case score <= 22:
		return RiskLow
	case score <= 32:
		return RiskIntermediate
	default:
		return RiskHigh
	}
}

// CasePlanInput describes a coronary case for planning.
type CasePlanInput struct {
	SyntaxScore      int           `json:"syntax_score"`
	EjectionFraction float64       `json:"ejection_fraction"`
	Procedure        ProcedureType `json:"procedure"`
	Conduit          string        `json:"conduit,omitempty"`   // CABG only
	WeightKg         float64       `json:"weight_kg,omitempty"` // optional, for heparin
}

// CasePlan is the planning output. MCS is set for PCI, ConduitPatency for CABG, never both.
type CasePlan struct {
	Procedure      ProcedureType      `json:"procedure"`
	SyntaxTertile  RiskLevel          `json:"syntax_tertile"`
	MCS            *MCSRecommendation `json:"mcs,omitempty"`
	ConduitPatency *ConduitPatency    `json:"conduit_patency,omitempty"`
	HeparinUnits   int                `json:"heparin_units,omitempty"`
}

// PlanCase builds the procedure plan for a case.
func PlanCase(in CasePlanInput) CasePlan {
	plan := CasePlan{
		Procedure:     in.Procedure,
		SyntaxTertile: SyntaxTertile(in.SyntaxScore),
	}

	switch in.Procedure {
	case ProcedurePCI:
		mcs := SelectMCS(in.SyntaxScore, in.EjectionFraction)
		plan.MCS = &mcs
	case ProcedureCABG:
		patency, _ := LookupConduitPatency(in.Conduit)
		plan.ConduitPatency = &patency
	}

	if in.WeightKg > 0 {
		plan.HeparinUnits = HeparinBolus(in.WeightKg)
	}

	return plan
}
