package summarize

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehq/carehq/internal/domain/queue"
)

// Service orchestrates per-patient highlight generation and reads.
type Service struct {
	highlights  Repository
	files       queue.FileRepository
	engine      *Engine
	concurrency int
	log         zerolog.Logger
}

func NewService(highlights Repository, files queue.FileRepository, engine *Engine, concurrency int, log zerolog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		highlights:  highlights,
		files:       files,
		engine:      engine,
		concurrency: concurrency,
		log:         log,
	}
}

// Generate runs summarization for one patient and upserts the highlight.
// Partial section failure still persists the successes; a run where every
// section fails returns the engine's error and leaves any previously
// persisted highlight untouched.
func (s *Service) Generate(ctx context.Context, patientID uuid.UUID) (*GenerationResult, error) {
	files, err := s.files.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("patient %s has no files", patientID)
	}

	fullName := ""
	for _, f := range files {
		if f.PatientFullName != "" {
			fullName = f.PatientFullName
			break
		}
	}

	h, gen, err := s.engine.Summarize(ctx, patientID, fullName, files)
	if err != nil {
		return nil, err
	}
	if err := s.highlights.Upsert(ctx, h); err != nil {
		return nil, fmt.Errorf("upsert highlight: %w", err)
	}

	s.log.Info().
		Str("patient_id", patientID.String()).
		Str("outcome", string(gen.Outcome)).
		Int("total_tokens", gen.TotalTokens).
		Int("failed_sections", len(gen.FailedSections)).
		Msg("highlight generated")
	return gen, nil
}

// GenerateBatch runs Generate over many patients with bounded concurrency.
// Result order matches input order; one patient's failure does not stop the
// batch.
func (s *Service) GenerateBatch(ctx context.Context, patientIDs []uuid.UUID) []ItemResult[*GenerationResult] {
	return RunLimited(ctx, patientIDs, s.concurrency, func(ctx context.Context, id uuid.UUID) (*GenerationResult, error) {
		return s.Generate(ctx, id)
	})
}

func (s *Service) HighlightForPatient(ctx context.Context, patientID uuid.UUID) (*CaseStudyHighlight, error) {
	return s.highlights.GetByPatient(ctx, patientID)
}

func (s *Service) HighlightsForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*CaseStudyHighlight, error) {
	return s.highlights.ListByPatients(ctx, patientIDs)
}
