package riskscore

// AFType is the clinical pattern of atrial fibrillation.
type AFType string

const (
	AFParoxysmal             AFType = "paroxysmal"
	AFPersistent             AFType = "persistent"
	AFLongStandingPersistent AFType = "long_standing_persistent"
)

// IsValid reports whether t is a known AF pattern.
func (t AFType) IsValid() bool {
	switch t {
	case AFParoxysmal, AFPersistent, AFLongStandingPersistent:
		return true
	default:
		return false
	}
}

// AblationStrategy is the lesion set planned for the procedure.
type AblationStrategy string

const (
	StrategyPVIOnly          AblationStrategy = "pvi_only"
	StrategyPVIPlusCTI       AblationStrategy = "pvi_cti"
	StrategyPVIPosteriorWall AblationStrategy = "pvi_posterior_wall"
	StrategyPVICFAE          AblationStrategy = "pvi_cfae"
)

// IsValid reports whether s is a known strategy.
func (s AblationStrategy) IsValid() bool {
	_, ok := ablationBaseRates[s]
	return ok
}

// AblationInput describes a planned AF ablation.
type AblationInput struct {
	AFType                AFType           `json:"af_type"`
	Strategy              AblationStrategy `json:"strategy"`
	LADiameterMM          float64          `json:"la_diameter_mm"`
	FailedAntiarrhythmics int              `json:"failed_antiarrhythmics"`
}

// AblationResult breaks the estimate into its base rate and adjustments.
type AblationResult struct {
	BaseRate       int `json:"base_rate"`
	LAAdjustment   int `json:"la_adjustment"`
	DrugAdjustment int `json:"drug_adjustment"`
	SuccessRate    int `json:"success_rate"`
}

// Success-rate bounds and adjustments.
const (
	AblationMinSuccess = 30
	AblationMaxSuccess = 95

	failedAADThreshold = 3
	failedAADBonus     = 5
)

// Base single-procedure freedom-from-AF rates by strategy and AF type.
var ablationBaseRates = map[AblationStrategy]map[AFType]int{
	StrategyPVIOnly:          {AFParoxysmal: 85, AFPersistent: 65, AFLongStandingPersistent: 50},
	StrategyPVIPlusCTI:       {AFParoxysmal: 87, AFPersistent: 68, AFLongStandingPersistent: 53},
	StrategyPVIPosteriorWall: {AFParoxysmal: 86, AFPersistent: 72, AFLongStandingPersistent: 60},
	StrategyPVICFAE:          {AFParoxysmal: 84, AFPersistent: 70, AFLongStandingPersistent: 58},
}

// AblationBaseRate returns the table rate, or 0 when the combination is unknown.
func AblationBaseRate(strategy AblationStrategy, afType AFType) int {
	return ablationBaseRates[strategy][afType]
}

// LAAdjustment penalizes atrial dilation; only the largest exceeded threshold applies.
func LAAdjustment(laDiameterMM float64) int {
	switch {
	case laDiameterMM > 50:
		return -15
	case laDiameterMM > 45:
		return -10
	case laDiameterMM > 40:
		return -5
	default:
		return 0
	}
}

// EstimateAblationSuccess returns the adjusted success percentage clamped to [30, 95].
func EstimateAblationSuccess(in AblationInput) AblationResult {
	res := AblationResult{
		BaseRate:     AblationBaseRate(in.Strategy, in.AFType),
		LAAdjustment: LAAdjustment(in.LADiameterMM),
	}
	if in.FailedAntiarrhythmics >= failedAADThreshold {
		res.DrugAdjustment = failedAADBonus
	}

	res.SuccessRate = clampInt(res.BaseRate+res.LAAdjustment+res.DrugAdjustment, AblationMinSuccess, AblationMaxSuccess)
	return res
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
