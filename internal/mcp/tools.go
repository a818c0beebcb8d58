package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/service"
	"github.com/cardio-insights-server/pkg/riskscore"
)

// HASBLEDParams defines parameters for the calculate_has_bled tool
type HASBLEDParams struct {
	Hypertension       bool   `json:"hypertension,omitempty" jsonschema:"uncontrolled hypertension"`
	AbnormalRenalLiver bool   `json:"abnormal_renal_liver,omitempty" jsonschema:"abnormal renal or liver function"`
	Stroke             bool   `json:"stroke,omitempty" jsonschema:"prior stroke"`
	BleedingHistory    bool   `json:"bleeding_history,omitempty" jsonschema:"prior major bleeding or predisposition"`
	LabileINR          bool   `json:"labile_inr,omitempty" jsonschema:"labile INR on warfarin"`
	Elderly            bool   `json:"elderly,omitempty" jsonschema:"age over 65"`
	DrugsOrAlcohol     bool   `json:"drugs_or_alcohol,omitempty" jsonschema:"antiplatelet or NSAID use or alcohol excess"`
	PatientID          string `json:"patient_id,omitempty" jsonschema:"optional patient identifier"`
	Persist            bool   `json:"persist,omitempty" jsonschema:"record the assessment in history"`
}

// MAGGICParams defines parameters for the calculate_maggic tool
type MAGGICParams struct {
	Age              float64 `json:"age" jsonschema:"age in years"`
	Male             bool    `json:"male,omitempty" jsonschema:"male sex"`
	EjectionFraction float64 `json:"ejection_fraction" jsonschema:"LV ejection fraction in percent"`
	NYHAClass        int     `json:"nyha_class" jsonschema:"NYHA functional class 1 to 4"`
	Creatinine       float64 `json:"creatinine" jsonschema:"serum creatinine in mg/dL"`
	Diabetes         bool    `json:"diabetes,omitempty"`
	COPD             bool    `json:"copd,omitempty"`
	CurrentSmoker    bool    `json:"current_smoker,omitempty"`
	HFDurationMonths float64 `json:"hf_duration_months,omitempty" jsonschema:"months since heart failure diagnosis"`
	SystolicBP       float64 `json:"systolic_bp" jsonschema:"systolic blood pressure in mmHg"`
	BMI              float64 `json:"bmi" jsonschema:"body mass index in kg/m2"`
	ACEIOrARB        bool    `json:"ace_i_or_arb,omitempty"`
	BetaBlocker      bool    `json:"beta_blocker,omitempty"`
	PatientID        string  `json:"patient_id,omitempty"`
	Persist          bool    `json:"persist,omitempty"`
}

// PlanCaseParams defines parameters for the plan_case tool
type PlanCaseParams struct {
	SyntaxScore      int     `json:"syntax_score" jsonschema:"anatomical SYNTAX score"`
	EjectionFraction float64 `json:"ejection_fraction" jsonschema:"LV ejection fraction in percent"`
	Procedure        string  `json:"procedure" jsonschema:"PCI or CABG"`
	Conduit          string  `json:"conduit,omitempty" jsonschema:"LIMA, RIMA, Radial or SVG for CABG"`
	WeightKg         float64 `json:"weight_kg,omitempty" jsonschema:"body weight for the heparin bolus"`
	PatientID        string  `json:"patient_id,omitempty"`
	Persist          bool    `json:"persist,omitempty"`
}

// AblationParams defines parameters for the estimate_ablation_success tool
type AblationParams struct {
	AFType                string  `json:"af_type" jsonschema:"paroxysmal, persistent or long_standing_persistent"`
	Strategy              string  `json:"strategy" jsonschema:"pvi_only, pvi_cti, pvi_posterior_wall or pvi_cfae"`
	LADiameterMM          float64 `json:"la_diameter_mm" jsonschema:"left atrial diameter in mm"`
	FailedAntiarrhythmics int     `json:"failed_antiarrhythmics,omitempty" jsonschema:"number of failed antiarrhythmic drugs"`
	PatientID             string  `json:"patient_id,omitempty"`
	Persist               bool    `json:"persist,omitempty"`
}

// ConduitParams defines parameters for the lookup_conduit_patency tool
type ConduitParams struct {
	Conduit string `json:"conduit,omitempty" jsonschema:"conduit name; omit for the full table"`
}

// WorklistParams defines parameters for the get_worklist tool
type WorklistParams struct {
	Filter string `json:"filter" jsonschema:"gdmt_gaps, hfpef_65_lvh_no_pyp, ef_le_35_qrs_ge_130_no_crt_ref or iron_def_no_iv_iron"`
}

// AssessmentsParams defines parameters for the get_patient_assessments tool
type AssessmentsParams struct {
	PatientID string `json:"patient_id" jsonschema:"patient identifier"`
	Limit     int    `json:"limit,omitempty"`
}

func (s *Server) registerTools() {
	add := func(name string) { s.tools = append(s.tools, name) }

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "calculate_has_bled",
		Description: "Score 1-year major bleeding risk on anticoagulation (HAS-BLED, 0 to 7).",
	}, s.handleHASBLED)
	add("calculate_has_bled")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "calculate_maggic",
		Description: "Estimate 1- and 3-year mortality in heart failure with the MAGGIC score.",
	}, s.handleMAGGIC)
	add("calculate_maggic")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "plan_case",
		Description: "Plan a PCI or CABG case from the SYNTAX score: support device, conduit patency and heparin bolus.",
	}, s.handlePlanCase)
	add("plan_case")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "estimate_ablation_success",
		Description: "Estimate single-procedure AF ablation success from AF type, lesion set, LA size and failed drugs.",
	}, s.handleAblation)
	add("estimate_ablation_success")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lookup_conduit_patency",
		Description: "Return 1/5/10-year graft patency for a CABG conduit, or the full table.",
	}, s.handleConduit)
	add("lookup_conduit_patency")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_worklist",
		Description: "List patients matching a care-gap worklist filter.",
	}, s.handleWorklist)
	add("get_worklist")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_patient_assessments",
		Description: "List recorded calculator assessments for a patient, newest first.",
	}, s.handleAssessments)
	add("get_patient_assessments")

	if s.opts.ExportDir != "" {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "export_worklist",
			Description: "Write a care-gap worklist to an .xlsx file in the server export directory.",
		}, s.handleExportWorklist)
		add("export_worklist")
	}
}

func (s *Server) handleHASBLED(ctx context.Context, _ *mcp.CallToolRequest, p HASBLEDParams) (*mcp.CallToolResult, any, error) {
	res, err := s.calculators.HASBLED(ctx, riskscore.HASBLEDInput{
		Hypertension:       p.Hypertension,
		AbnormalRenalLiver: p.AbnormalRenalLiver,
		Stroke:             p.Stroke,
		BleedingHistory:    p.BleedingHistory,
		LabileINR:          p.LabileINR,
		Elderly:            p.Elderly,
		DrugsOrAlcohol:     p.DrugsOrAlcohol,
	}, meta(p.PatientID, p.Persist))
	if err != nil {
		return s.toolError("calculate_has_bled", err)
	}

	r := res.Result
	text := fmt.Sprintf("HAS-BLED %d/%d: %s risk (%.1f-%.1f%% annual major bleeding). %s",
		r.Score, riskscore.HASBLEDMaxScore, r.Category, r.AnnualBleed.MinPercent, r.AnnualBleed.MaxPercent, r.Recommendation)
	return s.toolResult("calculate_has_bled", text, res)
}

func (s *Server) handleMAGGIC(ctx context.Context, _ *mcp.CallToolRequest, p MAGGICParams) (*mcp.CallToolResult, any, error) {
	res, err := s.calculators.MAGGIC(ctx, riskscore.MAGGICInput{
		Age:              p.Age,
		Male:             p.Male,
		EjectionFraction: p.EjectionFraction,
		NYHAClass:        p.NYHAClass,
		Creatinine:       p.Creatinine,
		Diabetes:         p.Diabetes,
		COPD:             p.COPD,
		CurrentSmoker:    p.CurrentSmoker,
		HFDurationMonths: p.HFDurationMonths,
		SystolicBP:       p.SystolicBP,
		BMI:              p.BMI,
		ACEIOrARB:        p.ACEIOrARB,
		BetaBlocker:      p.BetaBlocker,
	}, meta(p.PatientID, p.Persist))
	if err != nil {
		return s.toolError("calculate_maggic", err)
	}

	r := res.Result
	text := fmt.Sprintf("MAGGIC score %.2f: 1-year mortality %.1f%%, 3-year %.1f%% (%s). %s",
		r.Score, r.OneYearMortality, r.ThreeYearMortality, r.Category, r.Interpretation)
	return s.toolResult("calculate_maggic", text, res)
}

func (s *Server) handlePlanCase(ctx context.Context, _ *mcp.CallToolRequest, p PlanCaseParams) (*mcp.CallToolResult, any, error) {
	res, err := s.calculators.CasePlan(ctx, riskscore.CasePlanInput{
		SyntaxScore:      p.SyntaxScore,
		EjectionFraction: p.EjectionFraction,
		Procedure:        riskscore.ProcedureType(strings.ToUpper(strings.TrimSpace(p.Procedure))),
		Conduit:          p.Conduit,
		WeightKg:         p.WeightKg,
	}, meta(p.PatientID, p.Persist))
	if err != nil {
		return s.toolError("plan_case", err)
	}

	plan := res.Result
	var b strings.Builder
	fmt.Fprintf(&b, "%s plan, SYNTAX tertile %s.", plan.Procedure, plan.SyntaxTertile)
	if plan.MCS != nil {
		fmt.Fprintf(&b, " Support: %s (%s).", plan.MCS.Device, plan.MCS.Rationale)
	}
	if plan.ConduitPatency != nil {
		c := plan.ConduitPatency
		fmt.Fprintf(&b, " %s patency %d/%d/%d%% at 1/5/10 years.", c.Conduit, c.OneYear, c.FiveYear, c.TenYear)
	}
	if plan.HeparinUnits > 0 {
		fmt.Fprintf(&b, " Heparin bolus %d units.", plan.HeparinUnits)
	}
	return s.toolResult("plan_case", b.String(), res)
}

func (s *Server) handleAblation(ctx context.Context, _ *mcp.CallToolRequest, p AblationParams) (*mcp.CallToolResult, any, error) {
	res, err := s.calculators.Ablation(ctx, riskscore.AblationInput{
		AFType:                riskscore.AFType(strings.ToLower(strings.TrimSpace(p.AFType))),
		Strategy:              riskscore.AblationStrategy(strings.ToLower(strings.TrimSpace(p.Strategy))),
		LADiameterMM:          p.LADiameterMM,
		FailedAntiarrhythmics: p.FailedAntiarrhythmics,
	}, meta(p.PatientID, p.Persist))
	if err != nil {
		return s.toolError("estimate_ablation_success", err)
	}

	r := res.Result
	text := fmt.Sprintf("Estimated success %d%% (base %d, LA %+d, drugs %+d).",
		r.SuccessRate, r.BaseRate, r.LAAdjustment, r.DrugAdjustment)
	return s.toolResult("estimate_ablation_success", text, res)
}

func (s *Server) handleConduit(_ context.Context, _ *mcp.CallToolRequest, p ConduitParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(p.Conduit) == "" {
		table := s.calculators.ConduitPatencyTable()
		lines := make([]string, 0, len(table))
		for _, row := range table {
			lines = append(lines, fmt.Sprintf("%s: %d/%d/%d%%", row.Conduit, row.OneYear, row.FiveYear, row.TenYear))
		}
		return s.toolResult("lookup_conduit_patency", "Patency at 1/5/10 years\n"+strings.Join(lines, "\n"), map[string]any{"conduits": table})
	}

	row, err := s.calculators.ConduitPatency(p.Conduit)
	if err != nil {
		return s.toolError("lookup_conduit_patency", err)
	}
	text := fmt.Sprintf("%s patency: %d%% at 1 year, %d%% at 5 years, %d%% at 10 years.", row.Conduit, row.OneYear, row.FiveYear, row.TenYear)
	return s.toolResult("lookup_conduit_patency", text, row)
}

func (s *Server) handleWorklist(ctx context.Context, _ *mcp.CallToolRequest, p WorklistParams) (*mcp.CallToolResult, any, error) {
	wl, err := s.worklists.GetWorklist(ctx, p.Filter)
	if err != nil {
		return s.toolError("get_worklist", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d patient(s)", wl.Title, wl.Total)
	if wl.Stale {
		b.WriteString(" (cached data, patient source unavailable)")
	}
	for _, pt := range wl.Patients {
		fmt.Fprintf(&b, "\n- %s %s, %d%s, EF %.0f%%", pt.MRN, pt.Name, pt.Age, pt.Sex, pt.EjectionFraction)
	}
	return s.toolResult("get_worklist", b.String(), wl)
}

func (s *Server) handleAssessments(ctx context.Context, _ *mcp.CallToolRequest, p AssessmentsParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(p.PatientID) == "" {
		return s.toolError("get_patient_assessments", domain.NewValidationError("patient_id", "is required", p.PatientID))
	}

	records, err := s.calculators.PatientAssessments(ctx, p.PatientID, p.Limit, 0)
	if err != nil {
		return s.toolError("get_patient_assessments", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d assessment(s) for %s", len(records), p.PatientID)
	for _, rec := range records {
		fmt.Fprintf(&b, "\n- %s %s score %g %s", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Calculator, rec.Score, rec.Category)
	}
	return s.toolResult("get_patient_assessments", b.String(), map[string]any{
		"patient_id":  p.PatientID,
		"assessments": records,
	})
}

func (s *Server) handleExportWorklist(ctx context.Context, _ *mcp.CallToolRequest, p WorklistParams) (*mcp.CallToolResult, any, error) {
	filter, err := domain.ParseWorklistFilter(p.Filter)
	if err != nil {
		return s.toolError("export_worklist", err)
	}
	if err := os.MkdirAll(s.opts.ExportDir, 0o755); err != nil {
		return s.toolError("export_worklist", fmt.Errorf("failed to create export directory: %w", err))
	}

	path := filepath.Join(s.opts.ExportDir, fmt.Sprintf("%s-%s.xlsx", filter, time.Now().UTC().Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return s.toolError("export_worklist", fmt.Errorf("failed to create export file: %w", err))
	}
	defer f.Close()

	wl, err := s.worklists.ExportXLSX(ctx, string(filter), f)
	if err != nil {
		_ = os.Remove(path)
		return s.toolError("export_worklist", err)
	}

	text := fmt.Sprintf("Exported %d patient(s) from %s to %s", wl.Total, wl.Title, path)
	return s.toolResult("export_worklist", text, map[string]any{
		"path":   path,
		"filter": filter,
		"total":  wl.Total,
	})
}

func meta(patientID string, persist bool) domain.CalculationMeta {
	return domain.CalculationMeta{PatientID: patientID, Persist: persist}
}

func (s *Server) toolResult(tool, text string, out any) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", tool).Debug("Tool completed")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

// toolError reports failures to the client as tool errors rather than protocol errors.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, any, error) {
	message := "Error: " + err.Error()

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		message = fmt.Sprintf("Invalid %s: %s", vErr.Field, vErr.Message)
	case errors.Is(err, domain.ErrUnknownFilter):
		names := make([]string, len(domain.AllWorklistFilters))
		for i, f := range domain.AllWorklistFilters {
			names[i] = string(f)
		}
		message = fmt.Sprintf("%v. Known filters: %s", err, strings.Join(names, ", "))
	case errors.Is(err, service.ErrHistoryDisabled):
		message = "Assessment history is not enabled on this server"
	}

	s.logger.WithError(err).WithField("tool", tool).Warn("Tool failed")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}, nil, nil
}
