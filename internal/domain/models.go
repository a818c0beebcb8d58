package domain

import (
	"encoding/json"
	"time"
)

// Patient is a worklist row: demographics plus the care-gap attributes the filters inspect.
type Patient struct {
	ID          string      `json:"id"`
	MRN         string      `json:"mrn"`
	Name        string      `json:"name"`
	Age         int         `json:"age"`
	Sex         string      `json:"sex"`
	ServiceLine ServiceLine `json:"service_line"`

	EjectionFraction float64 `json:"ejection_fraction"`
	QRSDurationMS    int     `json:"qrs_duration_ms"`
	NYHAClass        int     `json:"nyha_class"`
	LVH              bool    `json:"lvh"`
	PYPScanDone      bool    `json:"pyp_scan_done"`
	CRTReferral      bool    `json:"crt_referral"`

	Ferritin              float64 `json:"ferritin"`               // ng/mL
	TransferrinSaturation float64 `json:"transferrin_saturation"` // %
	IVIronGiven           bool    `json:"iv_iron_given"`

	GDMT GDMTStatus `json:"gdmt"`

	LastEncounter time.Time `json:"last_encounter"`
}

// GDMTStatus records which guideline-directed medical therapy pillars a patient is on.
type GDMTStatus struct {
	RASInhibitor bool `json:"ras_inhibitor"` // ACE-I, ARB or ARNI
	BetaBlocker  bool `json:"beta_blocker"`
	MRA          bool `json:"mra"`
	SGLT2i       bool `json:"sglt2i"`
}

// MissingPillars returns the therapy classes the patient is not receiving.
func (g GDMTStatus) MissingPillars() []string {
	var missing []string
	if !g.RASInhibitor {
		missing = append(missing, "ACE-I/ARB/ARNI")
	}
	if !g.BetaBlocker {
		missing = append(missing, "Beta-blocker")
	}
	if !g.MRA {
		missing = append(missing, "MRA")
	}
	if !g.SGLT2i {
		missing = append(missing, "SGLT2i")
	}
	return missing
}

// Worklist is a filtered, ordered cohort.
type Worklist struct {
	Filter      WorklistFilter `json:"filter"`
	Title       string         `json:"title"`
	Patients    []Patient      `json:"patients"`
	Total       int            `json:"total"`
	GeneratedAt time.Time      `json:"generated_at"`
	Stale       bool           `json:"stale,omitempty"`
}

// AssessmentRecord is a persisted calculator run.
type AssessmentRecord struct {
	ID         string          `json:"id"`
	Calculator Calculator      `json:"calculator"`
	PatientID  string          `json:"patient_id,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Input      json.RawMessage `json:"input"`
	Result     json.RawMessage `json:"result"`
	Score      float64         `json:"score"`
	Category   string          `json:"category,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AssessmentEvent is the summary broadcast to live dashboard subscribers.
type AssessmentEvent struct {
	Type         string     `json:"type"`
	AssessmentID string     `json:"assessment_id,omitempty"`
	Calculator   Calculator `json:"calculator"`
	PatientID    string     `json:"patient_id,omitempty"`
	Score        float64    `json:"score"`
	Category     string     `json:"category,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Event types published on the live feed.
const (
	EventAssessmentComputed = "assessment.computed"
)

// CalculationMeta carries request context into the calculator service.
type CalculationMeta struct {
	PatientID string `json:"patient_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Persist   bool   `json:"persist,omitempty"`
}
