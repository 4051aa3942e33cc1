package summarize

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrHighlightNotFound is returned when no highlight row exists for a patient.
var ErrHighlightNotFound = errors.New("highlight not found")

// Repository persists case-study highlights, one row per patient.
type Repository interface {
	// Upsert inserts the highlight or, when a row for the patient already
	// exists, replaces its content in place.
	Upsert(ctx context.Context, h *CaseStudyHighlight) error

	GetByPatient(ctx context.Context, patientID uuid.UUID) (*CaseStudyHighlight, error)
	ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*CaseStudyHighlight, error)
}
