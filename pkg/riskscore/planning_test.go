package riskscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectMCS(t *testing.T) {
	tests := []struct {
		name     string
		syntax   int
		ef       float64
		expected MCSDevice
		required bool
	}{
		{"complex with reduced EF", 33, 34, MCSImpellaCP, true},
		{"very complex preserved EF", 41, 60, MCSIABP, true},
		{"very complex reduced EF prefers Impella", 45, 20, MCSImpellaCP, true},
		{"simple anatomy", 20, 60, MCSNone, false},
		{"tertile edge not complex", 32, 20, MCSNone, false},
		{"EF edge not reduced", 33, 35, MCSNone, false},
		{"IABP edge", 40, 60, MCSNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := SelectMCS(tt.syntax, tt.ef)
			assert.Equal(t, tt.expected, rec.Device)
			assert.Equal(t, tt.required, rec.Required)
			assert.NotEmpty(t, rec.Rationale)
		})
	}
}

func TestLookupConduitPatency(t *testing.T) {
	tests := []struct {
		name     string
		conduit  string
		expected ConduitPatency
		found    bool
	}{
		{"LIMA", "LIMA", ConduitPatency{ConduitLIMA, 98, 95, 90}, true},
		{"lower case", "lima", ConduitPatency{ConduitLIMA, 98, 95, 90}, true},
		{"RIMA", "RIMA", ConduitPatency{ConduitRIMA, 96, 90, 85}, true},
		{"radial mixed case", "RaDiAl", ConduitPatency{ConduitRadial, 92, 85, 80}, true},
		{"SVG with spaces", " svg ", ConduitPatency{ConduitSVG, 90, 75, 60}, true},
		{"unknown", "GEA", ConduitPatency{Conduit: "GEA"}, false},
		{"unknown trimmed", "  gea\t", ConduitPatency{Conduit: "gea"}, false},
		{"empty", "", ConduitPatency{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := LookupConduitPatency(tt.conduit)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, row)
		})
	}
}

func TestConduitPatencyTable_ReturnsCopy(t *testing.T) {
	table := ConduitPatencyTable()
	require.Len(t, table, 4)

	table[0].OneYear = 0

	row, ok := LookupConduitPatency("LIMA")
	require.True(t, ok)
	assert.Equal(t, 98, row.OneYear)
}

func TestConduitPatency_DecreasesOverTime(t *testing.T) {
	for _, row := range ConduitPatencyTable() {
		assert.GreaterOrEqual(t, row.OneYear, row.FiveYear, string(row.Conduit))
		assert.GreaterOrEqual(t, row.FiveYear, row.TenYear, string(row.Conduit))
	}
}

func TestHeparinBolus(t *testing.T) {
	assert.Equal(t, 5600, HeparinBolus(80))
	assert.Equal(t, 4935, HeparinBolus(70.5))
	assert.Equal(t, 4358, HeparinBolus(62.25)) // 4357.5 rounds half away from zero
	assert.Equal(t, 0, HeparinBolus(0))
}

func TestSyntaxTertile(t *testing.T) {
	assert.Equal(t, RiskLow, SyntaxTertile(0))
	assert.Equal(t, RiskLow, SyntaxTertile(22))
	assert.Equal(t, RiskIntermediate, SyntaxTertile(23))
	assert.Equal(t, RiskIntermediate, SyntaxTertile(32))
	assert.Equal(t, RiskHigh, SyntaxTertile(33))
}

func TestPlanCase_PCI(t *testing.T) {
	plan := PlanCase(CasePlanInput{SyntaxScore: 35, EjectionFraction: 30, Procedure: ProcedurePCI, WeightKg: 80})

	require.NotNil(t, plan.MCS)
	assert.Nil(t, plan.ConduitPatency)
	assert.Equal(t, MCSImpellaCP, plan.MCS.Device)
	assert.Equal(t, RiskHigh, plan.SyntaxTertile)
	assert.Equal(t, 5600, plan.HeparinUnits)
}

func TestPlanCase_CABG(t *testing.T) {
	plan := PlanCase(CasePlanInput{SyntaxScore: 28, EjectionFraction: 50, Procedure: ProcedureCABG, Conduit: "lima"})

	assert.Nil(t, plan.MCS)
	require.NotNil(t, plan.ConduitPatency)
	assert.Equal(t, 95, plan.ConduitPatency.FiveYear)
	assert.Equal(t, RiskIntermediate, plan.SyntaxTertile)
	assert.Zero(t, plan.HeparinUnits)
}

func TestPlanCase_CABGUnknownConduit(t *testing.T) {
	plan := PlanCase(CasePlanInput{SyntaxScore: 10, Procedure: ProcedureCABG, Conduit: "unknown"})

	require.NotNil(t, plan.ConduitPatency)
	assert.Zero(t, plan.ConduitPatency.OneYear)
	assert.Zero(t, plan.ConduitPatency.TenYear)
}

func TestProcedureType_IsValid(t *testing.T) {
	assert.True(t, ProcedurePCI.IsValid())
	assert.True(t, ProcedureCABG.IsValid())
	assert.False(t, ProcedureType("TAVR").IsValid())
}
