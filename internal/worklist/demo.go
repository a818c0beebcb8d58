package worklist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cardio-insights-server/internal/domain"
)

// DemoSource serves a canned cohort from memory, optionally after a simulated delay.
type DemoSource struct {
	patients []domain.Patient
	latency  time.Duration
}

// NewDemoSource returns a source over the built-in demo cohort.
func NewDemoSource(latency time.Duration) *DemoSource {
	return NewDemoSourceWithPatients(DemoPatients(), latency)
}

// NewDemoSourceWithPatients returns a source over the given patients.
func NewDemoSourceWithPatients(patients []domain.Patient, latency time.Duration) *DemoSource {
	cp := make([]domain.Patient, len(patients))
	copy(cp, patients)
	return &DemoSource{patients: cp, latency: latency}
}

// ListPatients returns a copy of the cohort.
func (s *DemoSource) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Patient, len(s.patients))
	copy(out, s.patients)
	return out, nil
}

// GetPatient returns one patient by ID.
func (s *DemoSource) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	for _, p := range s.patients {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
}

func (s *DemoSource) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// demoPatientID derives a stable ID from the MRN so demo links survive restarts.
func demoPatientID(mrn string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cardio-demo/"+mrn)).String()
}

var demoEpoch = time.Date(2026, time.September, 30, 9, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return demoEpoch.AddDate(0, 0, -n)
}

// DemoPatients returns the built-in demo cohort. Each worklist has several members and some
// patients appear on more than one list.
func DemoPatients() []domain.Patient {
	hf := domain.ServiceLineHeartFailure
	ep := domain.ServiceLineElectrophysiology
	cor := domain.ServiceLineCoronary
	sh := domain.ServiceLineStructural

	patients := []domain.Patient{
		{MRN: "MRN-100231", Name: "Harold Jennings", Age: 72, Sex: "M", ServiceLine: hf,
			EjectionFraction: 28, QRSDurationMS: 152, NYHAClass: 3,
			Ferritin: 85, TransferrinSaturation: 14,
			GDMT:          domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true},
			LastEncounter: daysAgo(2)},
		{MRN: "MRN-100245", Name: "Maria Delgado", Age: 64, Sex: "F", ServiceLine: hf,
			EjectionFraction: 35, QRSDurationMS: 138, NYHAClass: 2, CRTReferral: true,
			Ferritin: 210, TransferrinSaturation: 17,
			GDMT:          domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true, MRA: true},
			LastEncounter: daysAgo(5)},
		{MRN: "MRN-100262", Name: "Samuel Okafor", Age: 58, Sex: "M", ServiceLine: hf,
			EjectionFraction: 38, QRSDurationMS: 104, NYHAClass: 2,
			Ferritin: 320, TransferrinSaturation: 26,
			GDMT:          domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true, MRA: true, SGLT2i: true},
			LastEncounter: daysAgo(1)},
		{MRN: "MRN-100277", Name: "Evelyn Brooks", Age: 78, Sex: "F", ServiceLine: hf,
			EjectionFraction: 60, QRSDurationMS: 96, NYHAClass: 2, LVH: true,
			Ferritin: 140, TransferrinSaturation: 24,
			GDMT:          domain.GDMTStatus{SGLT2i: true},
			LastEncounter: daysAgo(3)},
		{MRN: "MRN-100283", Name: "George Whitfield", Age: 81, Sex: "M", ServiceLine: sh,
			EjectionFraction: 55, QRSDurationMS: 118, NYHAClass: 3, LVH: true,
			Ferritin: 60, TransferrinSaturation: 12, IVIronGiven: true,
			LastEncounter: daysAgo(3)},
		{MRN: "MRN-100290", Name: "Patricia Nguyen", Age: 69, Sex: "F", ServiceLine: hf,
			EjectionFraction: 52, QRSDurationMS: 90, NYHAClass: 2, LVH: true, PYPScanDone: true,
			Ferritin: 250, TransferrinSaturation: 22,
			LastEncounter: daysAgo(9)},
		{MRN: "MRN-100304", Name: "Robert Castillo", Age: 66, Sex: "M", ServiceLine: ep,
			EjectionFraction: 30, QRSDurationMS: 164, NYHAClass: 3,
			Ferritin: 180, TransferrinSaturation: 15,
			GDMT:          domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true, MRA: true, SGLT2i: true},
			LastEncounter: daysAgo(4)},
		{MRN: "MRN-100318", Name: "Linda Harper", Age: 74, Sex: "F", ServiceLine: ep,
			EjectionFraction: 57, QRSDurationMS: 100, NYHAClass: 1,
			Ferritin: 95, TransferrinSaturation: 18,
			LastEncounter: daysAgo(12)},
		{MRN: "MRN-100326", Name: "Thomas Reilly", Age: 61, Sex: "M", ServiceLine: cor,
			EjectionFraction: 45, QRSDurationMS: 108, NYHAClass: 1,
			Ferritin: 400, TransferrinSaturation: 30,
			GDMT:          domain.GDMTStatus{BetaBlocker: true},
			LastEncounter: daysAgo(7)},
		{MRN: "MRN-100331", Name: "Angela Moretti", Age: 70, Sex: "F", ServiceLine: hf,
			EjectionFraction: 25, QRSDurationMS: 128, NYHAClass: 4,
			Ferritin: 70, TransferrinSaturation: 10, IVIronGiven: true,
			GDMT:          domain.GDMTStatus{BetaBlocker: true, SGLT2i: true},
			LastEncounter: daysAgo(2)},
		{MRN: "MRN-100347", Name: "William Park", Age: 67, Sex: "M", ServiceLine: hf,
			EjectionFraction: 33, QRSDurationMS: 142, NYHAClass: 3,
			Ferritin: 290, TransferrinSaturation: 21,
			GDMT:          domain.GDMTStatus{RASInhibitor: true, BetaBlocker: true, MRA: true, SGLT2i: true},
			LastEncounter: daysAgo(4)},
		{MRN: "MRN-100352", Name: "Dorothy Simmons", Age: 83, Sex: "F", ServiceLine: sh,
			EjectionFraction: 62, QRSDurationMS: 112, NYHAClass: 2, LVH: true,
			Ferritin: 110, TransferrinSaturation: 16,
			LastEncounter: daysAgo(6)},
	}

	for i := range patients {
		patients[i].ID = demoPatientID(patients[i].MRN)
	}
	return patients
}
