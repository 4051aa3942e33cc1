package report

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehq/carehq/internal/domain/summarize"
)

// Service turns persisted highlights into paginated, watermarked case-study
// PDFs.
type Service struct {
	highlights    summarize.Repository
	spec          PageSpec
	watermarkText string
	log           zerolog.Logger
}

func NewService(highlights summarize.Repository, spec PageSpec, watermarkText string, log zerolog.Logger) *Service {
	return &Service{
		highlights:    highlights,
		spec:          spec,
		watermarkText: watermarkText,
		log:           log,
	}
}

// Generate renders a case-study document covering the given patients and
// returns the PDF bytes.
func (s *Service) Generate(ctx context.Context, patientIDs []uuid.UUID, title string) ([]byte, error) {
	pages, err := s.renderPages(ctx, patientIDs, title)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, pages); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateToFile renders the same document straight to a file path.
func (s *Service) GenerateToFile(ctx context.Context, patientIDs []uuid.UUID, title, path string) error {
	pages, err := s.renderPages(ctx, patientIDs, title)
	if err != nil {
		return err
	}
	return SavePDF(path, pages)
}

func (s *Service) renderPages(ctx context.Context, patientIDs []uuid.UUID, title string) ([]*image.RGBA, error) {
	highlights, err := s.highlights.ListByPatients(ctx, patientIDs)
	if err != nil {
		return nil, fmt.Errorf("load highlights: %w", err)
	}
	if len(highlights) == 0 {
		return nil, fmt.Errorf("no highlights for requested patients")
	}

	blocks := BuildBlocks(title, highlights)
	measured, totalHeight := Measure(blocks, s.spec)
	groups := AtomicGroups(measured)
	slices := ResolveBoundaries(totalHeight, s.spec, groups)
	canvas := RenderCanvas(measured, totalHeight, s.spec)

	pages := SlicePages(canvas, slices, s.spec)
	for _, p := range pages {
		Watermark(p, s.watermarkText)
	}

	s.log.Info().
		Int("patients", len(highlights)).
		Int("blocks", len(blocks)).
		Int("pages", len(pages)).
		Int("canvas_height", totalHeight).
		Msg("case-study report rendered")
	return pages, nil
}
