package summarize

import (
	"time"

	"github.com/google/uuid"
)

// Section identifies one of the three summarization corpora.
type Section string

const (
	SectionHospital   Section = "hospital"
	SectionFacility   Section = "facility"
	SectionEngagement Section = "engagement"
)

// SourceQuote is a literal excerpt from an input document, paired with the
// file it came from. The file ID is a lookup key used to build download
// links, not an ownership edge.
type SourceQuote struct {
	Text         string    `json:"text"`
	SourceFileID uuid.UUID `json:"source_file_id"`
}

// ClinicalRisk is one risk claim, cited back to a source file.
type ClinicalRisk struct {
	Risk         string    `json:"risk"`
	SourceFileID uuid.UUID `json:"source_file_id"`
}

// Intervention mirrors ClinicalRisk for care interventions.
type Intervention struct {
	Description  string    `json:"description"`
	SourceFileID uuid.UUID `json:"source_file_id"`
}

// Outcome mirrors ClinicalRisk for observed outcomes.
type Outcome struct {
	Description  string    `json:"description"`
	SourceFileID uuid.UUID `json:"source_file_id"`
}

// CaseStudyHighlight is the persisted, redacted, citation-backed clinical
// summary for one patient. At most one row exists per patient; regeneration
// upserts in place. Sections whose summarization failed hold empty strings
// and empty slices rather than error placeholders.
type CaseStudyHighlight struct {
	ID                           uuid.UUID      `json:"id"`
	PatientID                    uuid.UUID      `json:"patient_id"`
	HospitalDischargeSummaryText string         `json:"hospital_discharge_summary_text"`
	FacilitySummaryText          string         `json:"facility_summary_text"`
	EngagementSummaryText        string         `json:"engagement_summary_text"`
	HospitalQuotes               []SourceQuote  `json:"hospital_quotes"`
	FacilityQuotes               []SourceQuote  `json:"facility_quotes"`
	EngagementQuotes             []SourceQuote  `json:"engagement_quotes"`
	ClinicalRisks                []ClinicalRisk `json:"clinical_risks"`
	DetailedInterventions        []Intervention `json:"detailed_interventions"`
	DetailedOutcomes             []Outcome      `json:"detailed_outcomes"`
	UpdatedAt                    time.Time      `json:"updated_at"`
}

// GenerationOutcome reports how a per-patient run finished.
type GenerationOutcome string

const (
	// OutcomeMerged means all attempted sections succeeded.
	OutcomeMerged GenerationOutcome = "merged"
	// OutcomePartiallyMerged means at least one section failed but the
	// successes were still persisted.
	OutcomePartiallyMerged GenerationOutcome = "partially_merged"
	// OutcomeFailed means every attempted section failed. Nothing is
	// persisted so an earlier highlight survives untouched.
	OutcomeFailed GenerationOutcome = "failed"
)

// GenerationResult is returned by a per-patient summarization run.
type GenerationResult struct {
	PatientID      uuid.UUID         `json:"patient_id"`
	Outcome        GenerationOutcome `json:"outcome"`
	FailedSections []Section         `json:"failed_sections,omitempty"`
	TotalTokens    int               `json:"total_tokens"`
}
