package domain

import (
	"context"
)

// PatientSource provides the patient rows worklists are built from
type PatientSource interface {
	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
}

// AssessmentPublisher receives a summary of every computed assessment
type AssessmentPublisher interface {
	Publish(event AssessmentEvent)
}
