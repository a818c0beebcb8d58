package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/history"
	"github.com/cardio-insights-server/pkg/riskscore"
)

// ErrHistoryDisabled is returned by history reads when no store is configured.
var ErrHistoryDisabled = domain.ErrHistoryDisabled

// CalculatorService validates calculator requests, runs the risk scores and records the outcome.
type CalculatorService struct {
	logger    *logrus.Logger
	cache     *ResultCache
	history   history.Store
	publisher domain.AssessmentPublisher
	now       func() time.Time
}

// NewCalculatorService creates a new calculator service. cache, store and publisher are
// optional and may be nil.
func NewCalculatorService(
	logger *logrus.Logger,
	cache *ResultCache,
	store history.Store,
	publisher domain.AssessmentPublisher,
) *CalculatorService {
	return &CalculatorService{
		logger:    logger,
		cache:     cache,
		history:   store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// calculation describes one calculator to the shared pipeline.
type calculation[In, Out any] struct {
	calc      domain.Calculator
	validate  func(In) error
	compute   func(In) Out
	summarize func(In, Out) (float64, string)
}

func run[In, Out any](ctx context.Context, s *CalculatorService, c calculation[In, Out], in In, meta domain.CalculationMeta) (*CalculationResult[Out], error) {
	if err := c.validate(in); err != nil {
		s.logger.WithFields(logrus.Fields{
			"calculator": c.calc,
			"request_id": meta.RequestID,
			"error":      err.Error(),
		}).Debug("Rejected calculator input")
		return nil, err
	}

	result := &CalculationResult[Out]{Calculator: c.calc, ComputedAt: s.now()}

	key := ""
	if s.cache != nil {
		k, err := CacheKey(c.calc, in)
		if err != nil {
			return nil, err
		}
		key = k
		result.Cached = s.cache.Get(ctx, key, &result.Result)
	}

	if !result.Cached {
		result.Result = c.compute(in)
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, result.Result); err != nil {
				s.logger.WithError(err).WithField("calculator", c.calc).Warn("Failed to cache calculator result")
			}
		}
	}

	score, category := c.summarize(in, result.Result)

	if meta.Persist && s.history != nil {
		id, err := s.record(ctx, c.calc, in, result.Result, score, category, meta)
		if err != nil {
			return nil, err
		}
		result.AssessmentID = id
	}

	if s.publisher != nil {
		s.publisher.Publish(domain.AssessmentEvent{
			Type:         domain.EventAssessmentComputed,
			AssessmentID: result.AssessmentID,
			Calculator:   c.calc,
			PatientID:    meta.PatientID,
			Score:        score,
			Category:     category,
			Timestamp:    result.ComputedAt,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"calculator":    c.calc,
		"score":         score,
		"category":      category,
		"cached":        result.Cached,
		"patient_id":    meta.PatientID,
		"request_id":    meta.RequestID,
		"assessment_id": result.AssessmentID,
	}).Info("Calculation completed")

	return result, nil
}

func (s *CalculatorService) record(ctx context.Context, calc domain.Calculator, in, out any, score float64, category string, meta domain.CalculationMeta) (string, error) {
	input, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode assessment input: %w", err)
	}
	output, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode assessment result: %w", err)
	}

	rec := &domain.AssessmentRecord{
		Calculator: calc,
		PatientID:  meta.PatientID,
		RequestID:  meta.RequestID,
		Input:      input,
		Result:     output,
		Score:      score,
		Category:   category,
	}
	if err := s.history.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to record assessment: %w", err)
	}
	return rec.ID, nil
}

var hasBLEDCalc = calculation[riskscore.HASBLEDInput, riskscore.HASBLEDResult]{
	calc:     domain.CalculatorHASBLED,
	validate: ValidateHASBLED,
	compute:  riskscore.HASBLED,
	summarize: func(_ riskscore.HASBLEDInput, r riskscore.HASBLEDResult) (float64, string) {
		return float64(r.Score), r.Category.String()
	},
}

var maggicCalc = calculation[riskscore.MAGGICInput, riskscore.MAGGICResult]{
	calc:     domain.CalculatorMAGGIC,
	validate: ValidateMAGGIC,
	compute:  riskscore.MAGGIC,
	summarize: func(_ riskscore.MAGGICInput, r riskscore.MAGGICResult) (float64, string) {
		return r.Score, r.Category.String()
	},
}

var casePlanCalc = calculation[riskscore.CasePlanInput, riskscore.CasePlan]{
	calc:     domain.CalculatorCasePlan,
	validate: ValidateCasePlan,
	compute:  riskscore.PlanCase,
	summarize: func(in riskscore.CasePlanInput, r riskscore.CasePlan) (float64, string) {
		return float64(in.SyntaxScore), r.SyntaxTertile.String()
	},
}

var mcsCalc = calculation[MCSRequest, riskscore.MCSRecommendation]{
	calc:     domain.CalculatorMCS,
	validate: ValidateMCS,
	compute: func(in MCSRequest) riskscore.MCSRecommendation {
		return riskscore.SelectMCS(in.SyntaxScore, in.EjectionFraction)
	},
	summarize: func(in MCSRequest, r riskscore.MCSRecommendation) (float64, string) {
		return float64(in.SyntaxScore), string(r.Device)
	},
}

var heparinCalc = calculation[HeparinRequest, HeparinResult]{
	calc:     domain.CalculatorHeparin,
	validate: ValidateHeparin,
	compute: func(in HeparinRequest) HeparinResult {
		return HeparinResult{
			WeightKg:   in.WeightKg,
			UnitsPerKg: riskscore.HeparinUnitsPerKg,
			BolusUnits: riskscore.HeparinBolus(in.WeightKg),
		}
	},
	summarize: func(_ HeparinRequest, r HeparinResult) (float64, string) {
		return float64(r.BolusUnits), ""
	},
}

var ablationCalc = calculation[riskscore.AblationInput, riskscore.AblationResult]{
	calc:     domain.CalculatorAblation,
	validate: ValidateAblation,
	compute:  riskscore.EstimateAblationSuccess,
	summarize: func(in riskscore.AblationInput, r riskscore.AblationResult) (float64, string) {
		return float64(r.SuccessRate), string(in.Strategy)
	},
}

// HASBLED scores bleeding risk.
func (s *CalculatorService) HASBLED(ctx context.Context, in riskscore.HASBLEDInput, meta domain.CalculationMeta) (*HASBLEDResult, error) {
	return run(ctx, s, hasBLEDCalc, in, meta)
}

// MAGGIC estimates heart failure mortality.
func (s *CalculatorService) MAGGIC(ctx context.Context, in riskscore.MAGGICInput, meta domain.CalculationMeta) (*MAGGICResult, error) {
	return run(ctx, s, maggicCalc, in, meta)
}

// CasePlan builds a PCI or CABG plan.
func (s *CalculatorService) CasePlan(ctx context.Context, in riskscore.CasePlanInput, meta domain.CalculationMeta) (*CasePlanResult, error) {
	return run(ctx, s, casePlanCalc, in, meta)
}

// MCS recommends mechanical circulatory support.
func (s *CalculatorService) MCS(ctx context.Context, in MCSRequest, meta domain.CalculationMeta) (*MCSResult, error) {
	return run(ctx, s, mcsCalc, in, meta)
}

// Heparin computes the weight-based bolus.
func (s *CalculatorService) Heparin(ctx context.Context, in HeparinRequest, meta domain.CalculationMeta) (*HeparinBolus, error) {
	return run(ctx, s, heparinCalc, in, meta)
}

// Ablation estimates single-procedure ablation success.
func (s *CalculatorService) Ablation(ctx context.Context, in riskscore.AblationInput, meta domain.CalculationMeta) (*AblationResult, error) {
	return run(ctx, s, ablationCalc, in, meta)
}

// ConduitPatency returns the reference row for a conduit, or domain.ErrNotFound.
func (s *CalculatorService) ConduitPatency(conduit string) (riskscore.ConduitPatency, error) {
	row, ok := riskscore.LookupConduitPatency(conduit)
	if !ok {
		return row, fmt.Errorf("conduit %q: %w", conduit, domain.ErrNotFound)
	}
	return row, nil
}

// ConduitPatencyTable returns the full reference table.
func (s *CalculatorService) ConduitPatencyTable() []riskscore.ConduitPatency {
	return riskscore.ConduitPatencyTable()
}

// Assessment returns a recorded assessment by ID.
func (s *CalculatorService) Assessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}

// PatientAssessments lists a patient's recorded assessments, newest first.
func (s *CalculatorService) PatientAssessments(ctx context.Context, patientID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListByPatient(ctx, patientID, limit, offset)
}

// Assessments lists recorded assessments across all patients, newest first, with the
// store total for paging.
func (s *CalculatorService) Assessments(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, int64, error) {
	if s.history == nil {
		return nil, 0, ErrHistoryDisabled
	}
	records, err := s.history.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeleteAssessment removes a recorded assessment.
func (s *CalculatorService) DeleteAssessment(ctx context.Context, id string) error {
	if s.history == nil {
		return ErrHistoryDisabled
	}
	if err := s.history.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("assessment_id", id).Info("Assessment deleted")
	return nil
}

// ImportAssessments loads an export document, skipping assessments already present.
func (s *CalculatorService) ImportAssessments(ctx context.Context, r io.Reader) (imported, skipped int, err error) {
	if s.history == nil {
		return 0, 0, ErrHistoryDisabled
	}
	imported, skipped, err = s.history.ImportJSON(ctx, r)
	if err != nil {
		return imported, skipped, err
	}
	s.logger.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
	}).Info("Assessments imported")
	return imported, skipped, nil
}

// ExportAssessments writes every recorded assessment as a JSON export document.
func (s *CalculatorService) ExportAssessments(ctx context.Context, w io.Writer) error {
	if s.history == nil {
		return ErrHistoryDisabled
	}
	return s.history.ExportJSON(ctx, w)
}

// CacheStats reports result cache counters. The zero value is returned when caching is off.
func (s *CalculatorService) CacheStats() CacheStats {
	if s.cache == nil {
		return CacheStats{}
	}
	return s.cache.Stats()
}
