package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/history"
	"github.com/cardio-insights-server/internal/service"
	"github.com/cardio-insights-server/internal/worklist"
	"github.com/cardio-insights-server/pkg/riskscore"
)

func newTestServer(t *testing.T, withHistory bool) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	var store history.Store
	if withHistory {
		s, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "assessments.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		store = s
	}

	calculators := service.NewCalculatorService(logger, nil, store, nil)
	worklists := service.NewWorklistService(worklist.NewDemoSource(0), logger)

	server, err := NewServer(Options{}, calculators, worklists, logger)
	require.NoError(t, err)
	return server
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t, false)

	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, "cardio-insights", server.opts.Name)
	assert.Equal(t, TransportStdio, server.opts.Transport)
	assert.Equal(t, []string{
		"calculate_has_bled",
		"calculate_maggic",
		"plan_case",
		"estimate_ablation_success",
		"lookup_conduit_patency",
		"get_worklist",
		"get_patient_assessments",
	}, server.Tools())
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(Options{}, nil, nil, logrus.New())
	assert.Error(t, err)
}

func TestRun_UnsupportedTransport(t *testing.T) {
	server := newTestServer(t, false)
	server.opts.Transport = "carrier-pigeon"
	assert.Error(t, server.Run(context.Background()))
}

func TestHandleHASBLED(t *testing.T) {
	server := newTestServer(t, false)

	res, out, err := server.handleHASBLED(context.Background(), nil, HASBLEDParams{
		Hypertension: true, Stroke: true, BleedingHistory: true, Elderly: true,
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "HAS-BLED 4/7: High risk")

	result := out.(*service.HASBLEDResult)
	assert.Equal(t, 4, result.Result.Score)
}

func TestHandleMAGGIC(t *testing.T) {
	server := newTestServer(t, false)

	res, _, err := server.handleMAGGIC(context.Background(), nil, MAGGICParams{
		Age: 70, EjectionFraction: 45, NYHAClass: 2, Creatinine: 1.4, SystolicBP: 120, BMI: 30,
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "MAGGIC score 0.00")

	res, out, err := server.handleMAGGIC(context.Background(), nil, MAGGICParams{Age: 70})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Nil(t, out)
	assert.Contains(t, text(t, res), "Invalid ejection_fraction")
}

func TestHandlePlanCase(t *testing.T) {
	server := newTestServer(t, false)

	res, _, err := server.handlePlanCase(context.Background(), nil, PlanCaseParams{
		SyntaxScore: 35, EjectionFraction: 30, Procedure: "pci", WeightKg: 80,
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	got := text(t, res)
	assert.Contains(t, got, "PCI plan")
	assert.Contains(t, got, "Impella CP")
	assert.Contains(t, got, "5600 units")

	res, _, err = server.handlePlanCase(context.Background(), nil, PlanCaseParams{
		SyntaxScore: 20, EjectionFraction: 55, Procedure: "CABG", Conduit: "RIMA",
	})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "RIMA patency 96/90/85%")
}

func TestHandleAblation(t *testing.T) {
	server := newTestServer(t, false)

	res, out, err := server.handleAblation(context.Background(), nil, AblationParams{
		AFType: "Paroxysmal", Strategy: "PVI_ONLY", LADiameterMM: 52,
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "Estimated success 70%")
	assert.Equal(t, 70, out.(*service.AblationResult).Result.SuccessRate)

	res, _, err = server.handleAblation(context.Background(), nil, AblationParams{AFType: "permanent", Strategy: "pvi_only", LADiameterMM: 40})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Invalid af_type")
}

func TestHandleConduit(t *testing.T) {
	server := newTestServer(t, false)

	res, out, err := server.handleConduit(context.Background(), nil, ConduitParams{Conduit: "lima"})
	require.NoError(t, err)
	assert.Equal(t, riskscore.ConduitPatency{Conduit: riskscore.ConduitLIMA, OneYear: 98, FiveYear: 95, TenYear: 90}, out)
	assert.Contains(t, text(t, res), "LIMA patency: 98%")

	res, _, err = server.handleConduit(context.Background(), nil, ConduitParams{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "SVG: 90/75/60%")

	res, _, err = server.handleConduit(context.Background(), nil, ConduitParams{Conduit: "GEA"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleWorklist(t *testing.T) {
	server := newTestServer(t, false)

	res, out, err := server.handleWorklist(context.Background(), nil, WorklistParams{Filter: "iron_def_no_iv_iron"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 5, out.(*domain.Worklist).Total)
	assert.Contains(t, text(t, res), "MRN-100231")

	res, _, err = server.handleWorklist(context.Background(), nil, WorklistParams{Filter: "nope"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Known filters: gdmt_gaps")
}

func TestHandleAssessments(t *testing.T) {
	ctx := context.Background()

	disabled := newTestServer(t, false)
	res, _, err := disabled.handleAssessments(ctx, nil, AssessmentsParams{PatientID: "p-1"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not enabled")

	server := newTestServer(t, true)
	_, _, err = server.handleHASBLED(ctx, nil, HASBLEDParams{Hypertension: true, PatientID: "p-1", Persist: true})
	require.NoError(t, err)

	res, _, err = server.handleAssessments(ctx, nil, AssessmentsParams{PatientID: "p-1"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "1 assessment(s) for p-1")
	assert.Contains(t, text(t, res), "has_bled score 1 Low")

	res, _, err = server.handleAssessments(ctx, nil, AssessmentsParams{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleExportWorklist(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	dir := filepath.Join(t.TempDir(), "exports")

	server, err := NewServer(Options{ExportDir: dir},
		service.NewCalculatorService(logger, nil, nil, nil),
		service.NewWorklistService(worklist.NewDemoSource(0), logger),
		logger)
	require.NoError(t, err)
	assert.Contains(t, server.Tools(), "export_worklist")

	res, out, err := server.handleExportWorklist(context.Background(), nil, WorklistParams{Filter: "gdmt_gaps"})
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	path := out.(map[string]any)["path"].(string)
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("gdmt_gaps")
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	res, _, err = server.handleExportWorklist(context.Background(), nil, WorklistParams{Filter: "bogus"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
