package worklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/cardio-insights-server/internal/domain"
)

// BreakerConfig represents circuit breaker configuration
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ConsecutiveFailures trips the breaker when reached.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns settings suited to a database-backed source.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "patient-source",
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Snapshot is a patient list together with its freshness.
type Snapshot struct {
	Patients  []domain.Patient
	FetchedAt time.Time
	Stale     bool
}

// ResilientSource wraps a PatientSource with a circuit breaker and serves the last good
// patient list while the underlying source is failing.
type ResilientSource struct {
	next    domain.PatientSource
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger

	mu        sync.RWMutex
	snapshot  []domain.Patient
	fetchedAt time.Time
}

// NewResilientSource creates a new resilient patient source
func NewResilientSource(next domain.PatientSource, cfg BreakerConfig, logger *logrus.Logger) *ResilientSource {
	trips := cfg.ConsecutiveFailures
	if trips == 0 {
		trips = 1
	}

	r := &ResilientSource{next: next, log: logger}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// Caller cancellations, expired request deadlines and missing rows say
		// nothing about source health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
	})
	return r
}

// ListPatients implements domain.PatientSource.
func (r *ResilientSource) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	snap, err := r.ListPatientsWithStatus(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Patients, nil
}

// ListPatientsWithStatus returns fresh data when the source answers, otherwise the last good
// snapshot marked stale. It fails only when no snapshot exists yet.
func (r *ResilientSource) ListPatientsWithStatus(ctx context.Context) (Snapshot, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.next.ListPatients(ctx)
	})
	if err == nil {
		patients := result.([]domain.Patient)
		now := time.Now()

		r.mu.Lock()
		r.snapshot = patients
		r.fetchedAt = now
		r.mu.Unlock()

		return Snapshot{Patients: copyPatients(patients), FetchedAt: now}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Snapshot{}, fmt.Errorf("listing patients: %w", ctxErr)
	}

	r.mu.RLock()
	cached, fetchedAt := r.snapshot, r.fetchedAt
	r.mu.RUnlock()

	if cached == nil {
		return Snapshot{}, fmt.Errorf("listing patients: %w: %v", domain.ErrUnavailable, err)
	}

	r.log.WithFields(logrus.Fields{
		"error":      err,
		"fetched_at": fetchedAt,
		"state":      r.breaker.State().String(),
	}).Warn("Serving stale patient snapshot")

	return Snapshot{Patients: copyPatients(cached), FetchedAt: fetchedAt, Stale: true}, nil
}

// GetPatient implements domain.PatientSource, falling back to the snapshot when the source fails.
func (r *ResilientSource) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.next.GetPatient(ctx, id)
	})
	if err == nil {
		return result.(*domain.Patient), nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("getting patient %s: %w", id, ctxErr)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.snapshot {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("getting patient %s: %w: %v", id, domain.ErrUnavailable, err)
}

// State reports the breaker state for health checks.
func (r *ResilientSource) State() gobreaker.State {
	return r.breaker.State()
}

func copyPatients(in []domain.Patient) []domain.Patient {
	out := make([]domain.Patient, len(in))
	copy(out, in)
	return out
}
