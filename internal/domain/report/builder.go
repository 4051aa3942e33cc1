package report

import (
	"fmt"

	"github.com/carehq/carehq/internal/domain/summarize"
)

// BuildBlocks flattens highlight records into the document's block sequence.
// Quote cards stay atomic so a citation never straddles two pages; risk and
// table rows are individually atomic and fuse with their neighbors into one
// group per run.
func BuildBlocks(title string, highlights []*summarize.CaseStudyHighlight) []Block {
	var blocks []Block
	if title != "" {
		blocks = append(blocks, Block{Kind: KindHeading, Text: title})
	}

	for i, h := range highlights {
		if len(highlights) > 1 {
			blocks = append(blocks, Block{
				Kind: KindHeading,
				Text: fmt.Sprintf("Case study %d", i+1),
			})
		}
		blocks = append(blocks, patientBlocks(h)...)
	}
	return blocks
}

func patientBlocks(h *summarize.CaseStudyHighlight) []Block {
	var blocks []Block

	addSection := func(heading, summary string, quotes []summarize.SourceQuote) {
		if summary == "" && len(quotes) == 0 {
			return
		}
		blocks = append(blocks, Block{Kind: KindHeading, Text: heading})
		if summary != "" {
			blocks = append(blocks, Block{Kind: KindParagraph, Text: summary})
		}
		for _, q := range quotes {
			blocks = append(blocks, Block{
				Kind:   KindQuoteCard,
				Text:   q.Text,
				Detail: "source file " + q.SourceFileID.String(),
				Atomic: true,
			})
		}
	}

	addSection("Hospital stay", h.HospitalDischargeSummaryText, h.HospitalQuotes)
	addSection("In-facility care", h.FacilitySummaryText, h.FacilityQuotes)
	addSection("Engagement", h.EngagementSummaryText, h.EngagementQuotes)

	if len(h.ClinicalRisks) > 0 {
		blocks = append(blocks, Block{Kind: KindHeading, Text: "Clinical risks"})
		for _, r := range h.ClinicalRisks {
			blocks = append(blocks, Block{
				Kind:   KindRiskItem,
				Text:   r.Risk,
				Detail: "source file " + r.SourceFileID.String(),
				Atomic: true,
			})
		}
	}
	if len(h.DetailedInterventions) > 0 {
		blocks = append(blocks, Block{Kind: KindHeading, Text: "Interventions"})
		for _, iv := range h.DetailedInterventions {
			blocks = append(blocks, Block{
				Kind:   KindTableRow,
				Text:   iv.Description,
				Detail: "source file " + iv.SourceFileID.String(),
				Atomic: true,
			})
		}
	}
	if len(h.DetailedOutcomes) > 0 {
		blocks = append(blocks, Block{Kind: KindHeading, Text: "Outcomes"})
		for _, o := range h.DetailedOutcomes {
			blocks = append(blocks, Block{
				Kind:   KindTableRow,
				Text:   o.Description,
				Detail: "source file " + o.SourceFileID.String(),
				Atomic: true,
			})
		}
	}
	return blocks
}
