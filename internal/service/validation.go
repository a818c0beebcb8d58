package service

import (
	"math"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/pkg/riskscore"
)

// Clinical ranges accepted at the service boundary. The riskscore formulas carry any value
// through their arithmetic, so implausible inputs are rejected here instead.
const (
	minAdultAge        = 18
	maxAge             = 110
	maxEjectionFrac    = 100
	minCreatinine      = 0.1
	maxCreatinine      = 20
	maxHFDurationMo    = 600
	minSystolicBP      = 50
	maxSystolicBP      = 300
	minBMI             = 10
	maxBMI             = 80
	maxSyntaxScore     = 100
	maxWeightKg        = 350
	minLADiameterMM    = 10
	maxLADiameterMM    = 100
	maxFailedAADs      = 10
	unitPositiveWeight = "must be greater than 0 and at most 350 kg"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkRange(field string, v, lo, hi float64, msg string) error {
	if !finite(v) || v < lo || v > hi {
		return domain.NewValidationError(field, msg, v)
	}
	return nil
}

func checkEjectionFraction(ef float64) error {
	if !finite(ef) || ef <= 0 || ef > maxEjectionFrac {
		return domain.NewValidationError("ejection_fraction", "must be greater than 0 and at most 100", ef)
	}
	return nil
}

func checkSyntax(score int) error {
	if score < 0 || score > maxSyntaxScore {
		return domain.NewValidationError("syntax_score", "must be between 0 and 100", score)
	}
	return nil
}

func checkWeight(w float64) error {
	if !finite(w) || w <= 0 || w > maxWeightKg {
		return domain.NewValidationError("weight_kg", unitPositiveWeight, w)
	}
	return nil
}

// ValidateHASBLED accepts every combination of factors.
func ValidateHASBLED(riskscore.HASBLEDInput) error {
	return nil
}

// ValidateMAGGIC checks the MAGGIC inputs against plausible adult ranges.
func ValidateMAGGIC(in riskscore.MAGGICInput) error {
	if err := checkRange("age", in.Age, minAdultAge, maxAge, "must be between 18 and 110"); err != nil {
		return err
	}
	if err := checkEjectionFraction(in.EjectionFraction); err != nil {
		return err
	}
	if in.NYHAClass < 1 || in.NYHAClass > 4 {
		return domain.NewValidationError("nyha_class", "must be between 1 and 4", in.NYHAClass)
	}
	if err := checkRange("creatinine", in.Creatinine, minCreatinine, maxCreatinine, "must be between 0.1 and 20 mg/dL"); err != nil {
		return err
	}
	if err := checkRange("hf_duration_months", in.HFDurationMonths, 0, maxHFDurationMo, "must be between 0 and 600"); err != nil {
		return err
	}
	if err := checkRange("systolic_bp", in.SystolicBP, minSystolicBP, maxSystolicBP, "must be between 50 and 300 mmHg"); err != nil {
		return err
	}
	return checkRange("bmi", in.BMI, minBMI, maxBMI, "must be between 10 and 80")
}

// ValidateCasePlan checks a planning request. Weight is optional; conduit names are free text.
func ValidateCasePlan(in riskscore.CasePlanInput) error {
	if !in.Procedure.IsValid() {
		return domain.NewValidationError("procedure", "must be PCI or CABG", in.Procedure)
	}
	if err := checkSyntax(in.SyntaxScore); err != nil {
		return err
	}
	if err := checkEjectionFraction(in.EjectionFraction); err != nil {
		return err
	}
	if in.WeightKg != 0 {
		return checkWeight(in.WeightKg)
	}
	return nil
}

// ValidateMCS checks a support-device request.
func ValidateMCS(in MCSRequest) error {
	if err := checkSyntax(in.SyntaxScore); err != nil {
		return err
	}
	return checkEjectionFraction(in.EjectionFraction)
}

// ValidateHeparin checks a heparin bolus request.
func ValidateHeparin(in HeparinRequest) error {
	return checkWeight(in.WeightKg)
}

// ValidateAblation checks an ablation estimate request.
func ValidateAblation(in riskscore.AblationInput) error {
	if !in.AFType.IsValid() {
		return domain.NewValidationError("af_type", "must be paroxysmal, persistent or long_standing_persistent", in.AFType)
	}
	if !in.Strategy.IsValid() {
		return domain.NewValidationError("strategy", "must be pvi_only, pvi_cti, pvi_posterior_wall or pvi_cfae", in.Strategy)
	}
	if err := checkRange("la_diameter_mm", in.LADiameterMM, minLADiameterMM, maxLADiameterMM, "must be between 10 and 100 mm"); err != nil {
		return err
	}
	if in.FailedAntiarrhythmics < 0 || in.FailedAntiarrhythmics > maxFailedAADs {
		return domain.NewValidationError("failed_antiarrhythmics", "must be between 0 and 10", in.FailedAntiarrhythmics)
	}
	return nil
}
