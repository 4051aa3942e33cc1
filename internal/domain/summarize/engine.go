package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehq/carehq/internal/domain/queue"
	"github.com/carehq/carehq/internal/platform/llm"
)

// sectionOrder fixes the bucket order so results map back deterministically.
var sectionOrder = []Section{SectionHospital, SectionFacility, SectionEngagement}

var sectionFileType = map[Section]string{
	SectionHospital:   queue.FileTypeHospitalStay,
	SectionFacility:   queue.FileTypeInFacility,
	SectionEngagement: queue.FileTypeEngagement,
}

// quoteJSON mirrors the model's response items before UUID validation.
type quoteJSON struct {
	Text         string `json:"text"`
	SourceFileID string `json:"source_file_id"`
}

type riskJSON struct {
	Risk         string `json:"risk"`
	SourceFileID string `json:"source_file_id"`
}

type descJSON struct {
	Description  string `json:"description"`
	SourceFileID string `json:"source_file_id"`
}

// sectionPayload is the fixed response schema. Pointer fields distinguish
// "key absent" from "key empty" so the validator can require keys.
type sectionPayload struct {
	Summary               *string      `json:"summary"`
	SourceQuotes          *[]quoteJSON `json:"source_quotes"`
	ClinicalRisks         *[]riskJSON  `json:"clinical_risks"`
	DetailedInterventions *[]descJSON  `json:"detailed_interventions"`
	DetailedOutcomes      *[]descJSON  `json:"detailed_outcomes"`
}

// sectionResult is one section's parsed, validated output.
type sectionResult struct {
	section Section
	payload sectionPayload
	tokens  int
}

// Engine runs the per-patient summarization: three concurrent prompts over
// the three file-type corpora, throttled on the shared token ledger, merged
// into one highlight record.
type Engine struct {
	chat        llm.Chatter
	throttler   *Throttler
	temperature float64
	maxTokens   int
	concurrency int
	log         zerolog.Logger
}

func NewEngine(chat llm.Chatter, throttler *Throttler, temperature float64, maxTokens, concurrency int, log zerolog.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = len(sectionOrder)
	}
	return &Engine{
		chat:        chat,
		throttler:   throttler,
		temperature: temperature,
		maxTokens:   maxTokens,
		concurrency: concurrency,
		log:         log,
	}
}

// Summarize buckets the patient's files, issues one prompt per non-empty
// corpus, and merges the survivors into a redacted highlight. A section's
// parse, validation, or call failure never aborts its siblings; the merge
// still runs over whatever succeeded. If every attempted section fails the
// run returns an error and no highlight.
func (e *Engine) Summarize(ctx context.Context, patientID uuid.UUID, patientFullName string, files []*queue.PatientFile) (*CaseStudyHighlight, *GenerationResult, error) {
	corpora := bucketByType(files)

	var sections []Section
	for _, s := range sectionOrder {
		if len(corpora[s]) > 0 {
			sections = append(sections, s)
		}
	}

	results := RunLimited(ctx, sections, e.concurrency, func(ctx context.Context, s Section) (sectionResult, error) {
		return e.runSection(ctx, s, corpora[s])
	})

	gen := &GenerationResult{PatientID: patientID, Outcome: OutcomeMerged}
	h := &CaseStudyHighlight{
		PatientID:             patientID,
		HospitalQuotes:        []SourceQuote{},
		FacilityQuotes:        []SourceQuote{},
		EngagementQuotes:      []SourceQuote{},
		ClinicalRisks:         []ClinicalRisk{},
		DetailedInterventions: []Intervention{},
		DetailedOutcomes:      []Outcome{},
	}

	var sectionErrs []error
	for i, res := range results {
		section := sections[i]
		if res.Err != nil {
			e.log.Warn().
				Err(res.Err).
				Str("patient_id", patientID.String()).
				Str("section", string(section)).
				Msg("section summarization failed")
			gen.FailedSections = append(gen.FailedSections, section)
			sectionErrs = append(sectionErrs, res.Err)
			continue
		}
		gen.TotalTokens += res.Value.tokens
		mergeSection(h, section, res.Value.payload, patientFullName)
	}
	e.throttler.Report(gen.TotalTokens)

	// All attempted sections failing is a failed run, not a partial merge:
	// an all-empty highlight must never replace an earlier good one.
	if len(sections) > 0 && len(gen.FailedSections) == len(sections) {
		gen.Outcome = OutcomeFailed
		return nil, gen, fmt.Errorf("all sections failed: %w", errors.Join(sectionErrs...))
	}
	if len(gen.FailedSections) > 0 {
		gen.Outcome = OutcomePartiallyMerged
	}
	return h, gen, nil
}

// runSection gates on the throttler, issues the prompt, and parses the reply.
func (e *Engine) runSection(ctx context.Context, s Section, corpus []*queue.PatientFile) (sectionResult, error) {
	if err := e.throttler.Wait(ctx); err != nil {
		return sectionResult{}, err
	}

	reply, err := e.chat.Chat(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(s, corpus),
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return sectionResult{}, fmt.Errorf("section %s: %w", s, err)
	}

	payload, err := parseSection(s, reply.Content)
	if err != nil {
		// Tokens were still consumed; the ledger must see them even when
		// the payload is unusable.
		e.throttler.Report(reply.TotalTokens)
		return sectionResult{}, fmt.Errorf("section %s: %w", s, err)
	}
	return sectionResult{section: s, payload: payload, tokens: reply.TotalTokens}, nil
}

// parseSection strips code fences, decodes, and structurally validates the
// response. Validation failure is indistinguishable from parse failure to
// the caller.
func parseSection(s Section, content string) (sectionPayload, error) {
	var p sectionPayload
	if err := json.Unmarshal([]byte(llm.StripFences(content)), &p); err != nil {
		return p, fmt.Errorf("parse response: %w", err)
	}
	if p.Summary == nil {
		return p, fmt.Errorf("response missing summary")
	}
	if p.SourceQuotes == nil {
		return p, fmt.Errorf("response missing source_quotes")
	}
	switch s {
	case SectionHospital:
		if p.ClinicalRisks == nil {
			return p, fmt.Errorf("response missing clinical_risks")
		}
	case SectionFacility:
		if p.DetailedInterventions == nil {
			return p, fmt.Errorf("response missing detailed_interventions")
		}
	case SectionEngagement:
		if p.DetailedOutcomes == nil {
			return p, fmt.Errorf("response missing detailed_outcomes")
		}
	}
	return p, nil
}

// mergeSection folds one validated payload into the highlight, redacting
// every model-derived string on the way in. Items citing an unparseable file
// ID are dropped rather than stored with a nil reference.
func mergeSection(h *CaseStudyHighlight, s Section, p sectionPayload, fullName string) {
	summary := Redact(*p.Summary, fullName)
	quotes := convertQuotes(*p.SourceQuotes, fullName)

	switch s {
	case SectionHospital:
		h.HospitalDischargeSummaryText = summary
		h.HospitalQuotes = quotes
		for _, r := range *p.ClinicalRisks {
			id, err := uuid.Parse(r.SourceFileID)
			if err != nil {
				continue
			}
			h.ClinicalRisks = append(h.ClinicalRisks, ClinicalRisk{
				Risk:         Redact(r.Risk, fullName),
				SourceFileID: id,
			})
		}
	case SectionFacility:
		h.FacilitySummaryText = summary
		h.FacilityQuotes = quotes
		for _, iv := range *p.DetailedInterventions {
			id, err := uuid.Parse(iv.SourceFileID)
			if err != nil {
				continue
			}
			h.DetailedInterventions = append(h.DetailedInterventions, Intervention{
				Description:  Redact(iv.Description, fullName),
				SourceFileID: id,
			})
		}
	case SectionEngagement:
		h.EngagementSummaryText = summary
		h.EngagementQuotes = quotes
		for _, o := range *p.DetailedOutcomes {
			id, err := uuid.Parse(o.SourceFileID)
			if err != nil {
				continue
			}
			h.DetailedOutcomes = append(h.DetailedOutcomes, Outcome{
				Description:  Redact(o.Description, fullName),
				SourceFileID: id,
			})
		}
	}
}

func convertQuotes(in []quoteJSON, fullName string) []SourceQuote {
	out := []SourceQuote{}
	for _, q := range in {
		id, err := uuid.Parse(q.SourceFileID)
		if err != nil {
			continue
		}
		out = append(out, SourceQuote{
			Text:         Redact(q.Text, fullName),
			SourceFileID: id,
		})
	}
	return out
}

// bucketByType splits files into the three corpora, keeping only files whose
// extraction produced text.
func bucketByType(files []*queue.PatientFile) map[Section][]*queue.PatientFile {
	out := make(map[Section][]*queue.PatientFile)
	for _, s := range sectionOrder {
		ft := sectionFileType[s]
		for _, f := range files {
			if f.FileType == ft && f.ParsedText != nil && *f.ParsedText != "" {
				out[s] = append(out[s], f)
			}
		}
	}
	return out
}
