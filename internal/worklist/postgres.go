package worklist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
)

// PostgresSource reads worklist patients from the patients table
type PostgresSource struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresSource creates a new Postgres-backed patient source
func NewPostgresSource(db *pgxpool.Pool, logger *logrus.Logger) *PostgresSource {
	return &PostgresSource{
		db:  db,
		log: logger,
	}
}

const patientColumns = `
	id, mrn, name, age, sex, service_line,
	ejection_fraction, qrs_duration_ms, nyha_class, lvh, pyp_scan_done, crt_referral,
	ferritin, transferrin_saturation, iv_iron_given,
	on_ras_inhibitor, on_beta_blocker, on_mra, on_sglt2i,
	last_encounter`

func scanPatient(row pgx.Row) (domain.Patient, error) {
	var p domain.Patient
	var serviceLine string

	err := row.Scan(
		&p.ID, &p.MRN, &p.Name, &p.Age, &p.Sex, &serviceLine,
		&p.EjectionFraction, &p.QRSDurationMS, &p.NYHAClass, &p.LVH, &p.PYPScanDone, &p.CRTReferral,
		&p.Ferritin, &p.TransferrinSaturation, &p.IVIronGiven,
		&p.GDMT.RASInhibitor, &p.GDMT.BetaBlocker, &p.GDMT.MRA, &p.GDMT.SGLT2i,
		&p.LastEncounter,
	)
	p.ServiceLine = domain.ServiceLine(serviceLine)
	return p, err
}

// ListPatients returns every patient, most recent encounter first
func (s *PostgresSource) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY last_encounter DESC, mrn`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("Failed to query patients")
		return nil, fmt.Errorf("querying patients: %w", err)
	}
	defer rows.Close()

	var patients []domain.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}

	s.log.WithField("count", len(patients)).Debug("Loaded patients")
	return patients, nil
}

// GetPatient retrieves a patient by ID
func (s *PostgresSource) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
	}

	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	p, err := scanPatient(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
		}
		s.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient by ID")
		return nil, fmt.Errorf("getting patient by ID: %w", err)
	}

	return &p, nil
}

// UpsertPatient inserts a patient or updates the row with the same ID
func (s *PostgresSource) UpsertPatient(ctx context.Context, p domain.Patient) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			mrn = EXCLUDED.mrn,
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			sex = EXCLUDED.sex,
			service_line = EXCLUDED.service_line,
			ejection_fraction = EXCLUDED.ejection_fraction,
			qrs_duration_ms = EXCLUDED.qrs_duration_ms,
			nyha_class = EXCLUDED.nyha_class,
			lvh = EXCLUDED.lvh,
			pyp_scan_done = EXCLUDED.pyp_scan_done,
			crt_referral = EXCLUDED.crt_referral,
			ferritin = EXCLUDED.ferritin,
			transferrin_saturation = EXCLUDED.transferrin_saturation,
			iv_iron_given = EXCLUDED.iv_iron_given,
			on_ras_inhibitor = EXCLUDED.on_ras_inhibitor,
			on_beta_blocker = EXCLUDED.on_beta_blocker,
			on_mra = EXCLUDED.on_mra,
			on_sglt2i = EXCLUDED.on_sglt2i,
			last_encounter = EXCLUDED.last_encounter,
			updated_at = NOW()`

	_, err := s.db.Exec(ctx, query,
		p.ID, p.MRN, p.Name, p.Age, p.Sex, string(p.ServiceLine),
		p.EjectionFraction, p.QRSDurationMS, p.NYHAClass, p.LVH, p.PYPScanDone, p.CRTReferral,
		p.Ferritin, p.TransferrinSaturation, p.IVIronGiven,
		p.GDMT.RASInhibitor, p.GDMT.BetaBlocker, p.GDMT.MRA, p.GDMT.SGLT2i,
		p.LastEncounter,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": p.ID,
			"mrn":        p.MRN,
			"error":      err,
		}).Error("Failed to upsert patient")
		return fmt.Errorf("upserting patient: %w", err)
	}
	return nil
}

// Seed upserts every patient, used to load the demo cohort into a fresh database
func (s *PostgresSource) Seed(ctx context.Context, patients []domain.Patient) error {
	for _, p := range patients {
		if err := s.UpsertPatient(ctx, p); err != nil {
			return err
		}
	}
	s.log.WithField("count", len(patients)).Info("Seeded patients")
	return nil
}
