package service

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/pkg/riskscore"
)

func validMAGGIC() riskscore.MAGGICInput {
	return riskscore.MAGGICInput{
		Age:              70,
		EjectionFraction: 45,
		NYHAClass:        2,
		Creatinine:       1.4,
		SystolicBP:       120,
		BMI:              30,
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	return vErr.Field
}

func TestValidateMAGGIC(t *testing.T) {
	require.NoError(t, ValidateMAGGIC(validMAGGIC()))

	tests := []struct {
		name   string
		mutate func(*riskscore.MAGGICInput)
		field  string
	}{
		{"minor", func(in *riskscore.MAGGICInput) { in.Age = 17 }, "age"},
		{"implausible age", func(in *riskscore.MAGGICInput) { in.Age = 130 }, "age"},
		{"NaN age", func(in *riskscore.MAGGICInput) { in.Age = math.NaN() }, "age"},
		{"zero EF", func(in *riskscore.MAGGICInput) { in.EjectionFraction = 0 }, "ejection_fraction"},
		{"EF over 100", func(in *riskscore.MAGGICInput) { in.EjectionFraction = 101 }, "ejection_fraction"},
		{"NYHA 0", func(in *riskscore.MAGGICInput) { in.NYHAClass = 0 }, "nyha_class"},
		{"NYHA 5", func(in *riskscore.MAGGICInput) { in.NYHAClass = 5 }, "nyha_class"},
		{"creatinine zero", func(in *riskscore.MAGGICInput) { in.Creatinine = 0 }, "creatinine"},
		{"negative HF duration", func(in *riskscore.MAGGICInput) { in.HFDurationMonths = -1 }, "hf_duration_months"},
		{"low SBP", func(in *riskscore.MAGGICInput) { in.SystolicBP = 40 }, "systolic_bp"},
		{"high BMI", func(in *riskscore.MAGGICInput) { in.BMI = 90 }, "bmi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validMAGGIC()
			tt.mutate(&in)
			assert.Equal(t, tt.field, fieldOf(t, ValidateMAGGIC(in)))
		})
	}
}

func TestValidateCasePlan(t *testing.T) {
	ok := riskscore.CasePlanInput{SyntaxScore: 30, EjectionFraction: 40, Procedure: riskscore.ProcedurePCI}
	require.NoError(t, ValidateCasePlan(ok))

	withWeight := ok
	withWeight.WeightKg = 82
	require.NoError(t, ValidateCasePlan(withWeight))

	badProc := ok
	badProc.Procedure = "TAVR"
	assert.Equal(t, "procedure", fieldOf(t, ValidateCasePlan(badProc)))

	badSyntax := ok
	badSyntax.SyntaxScore = -1
	assert.Equal(t, "syntax_score", fieldOf(t, ValidateCasePlan(badSyntax)))

	badWeight := ok
	badWeight.WeightKg = -5
	assert.Equal(t, "weight_kg", fieldOf(t, ValidateCasePlan(badWeight)))
}

func TestValidateMCSAndHeparin(t *testing.T) {
	require.NoError(t, ValidateMCS(MCSRequest{SyntaxScore: 33, EjectionFraction: 34}))
	assert.Equal(t, "syntax_score", fieldOf(t, ValidateMCS(MCSRequest{SyntaxScore: 101, EjectionFraction: 34})))
	assert.Equal(t, "ejection_fraction", fieldOf(t, ValidateMCS(MCSRequest{SyntaxScore: 10, EjectionFraction: -3})))

	require.NoError(t, ValidateHeparin(HeparinRequest{WeightKg: 80}))
	assert.Equal(t, "weight_kg", fieldOf(t, ValidateHeparin(HeparinRequest{})))
	assert.Equal(t, "weight_kg", fieldOf(t, ValidateHeparin(HeparinRequest{WeightKg: 400})))
}

func TestValidateAblation(t *testing.T) {
	ok := riskscore.AblationInput{
		AFType:       riskscore.AFParoxysmal,
		Strategy:     riskscore.StrategyPVIOnly,
		LADiameterMM: 38,
	}
	require.NoError(t, ValidateAblation(ok))

	badType := ok
	badType.AFType = "permanent"
	assert.Equal(t, "af_type", fieldOf(t, ValidateAblation(badType)))

	badStrategy := ok
	badStrategy.Strategy = "maze"
	assert.Equal(t, "strategy", fieldOf(t, ValidateAblation(badStrategy)))

	badLA := ok
	badLA.LADiameterMM = 5
	assert.Equal(t, "la_diameter_mm", fieldOf(t, ValidateAblation(badLA)))

	badDrugs := ok
	badDrugs.FailedAntiarrhythmics = -1
	assert.Equal(t, "failed_antiarrhythmics", fieldOf(t, ValidateAblation(badDrugs)))
}

func TestValidateHASBLED_AcceptsAnything(t *testing.T) {
	assert.NoError(t, ValidateHASBLED(riskscore.HASBLEDInput{}))
	assert.NoError(t, ValidateHASBLED(riskscore.HASBLEDInput{Hypertension: true, Stroke: true, Elderly: true}))
}
