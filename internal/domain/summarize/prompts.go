package summarize

import (
	"fmt"
	"strings"

	"github.com/carehq/carehq/internal/domain/queue"
)

// systemPrompt carries the rules every section call must obey. The identity
// and citation rules are re-enforced after the fact by Redact and by the
// schema validator; the prompt is the first line of defense.
const systemPrompt = `You are a clinical documentation analyst producing case-study material from care records.

Rules, all mandatory:
1. Never fabricate. Every claim must be supported by the provided documents.
2. Every claim must be backed by a literal quote from a document, paired with that document's FILE ID.
3. No hyperbole or superlatives. State findings plainly.
4. Never state that medication was prescribed. You may describe medication management activity only in the words of the source.
5. Refer to the patient only by role ("the patient"), never by name, initials, or other identifiers.
6. Respond with a single JSON object matching the requested schema. No prose outside the JSON.`

type promptSpec struct {
	section Section
	// instructions is the section-specific task description, including the
	// JSON schema the response must match.
	instructions string
}

var sectionPrompts = map[Section]promptSpec{
	SectionHospital: {
		section: SectionHospital,
		instructions: `Summarize the patient's hospital stay and discharge from the documents below.

Respond with JSON of this exact shape:
{
  "summary": "string, the discharge summary narrative",
  "source_quotes": [{"text": "literal quote", "source_file_id": "uuid"}],
  "clinical_risks": [{"risk": "string", "source_file_id": "uuid"}]
}`,
	},
	SectionFacility: {
		section: SectionFacility,
		instructions: `Summarize the care the patient received while in the facility, from the documents below.

Respond with JSON of this exact shape:
{
  "summary": "string, the in-facility care narrative",
  "source_quotes": [{"text": "literal quote", "source_file_id": "uuid"}],
  "detailed_interventions": [{"description": "string", "source_file_id": "uuid"}]
}`,
	},
	SectionEngagement: {
		section: SectionEngagement,
		instructions: `Summarize the patient's engagement with the care program, from the documents below.

Respond with JSON of this exact shape:
{
  "summary": "string, the engagement narrative",
  "source_quotes": [{"text": "literal quote", "source_file_id": "uuid"}],
  "detailed_outcomes": [{"description": "string", "source_file_id": "uuid"}]
}`,
	},
}

// buildPrompt renders a section's user prompt from its corpus. Each document
// is delimited and labeled with the FILE ID the model must cite.
func buildPrompt(section Section, corpus []*queue.PatientFile) string {
	spec := sectionPrompts[section]

	var b strings.Builder
	b.WriteString(spec.instructions)
	b.WriteString("\n\nDocuments:\n")
	for _, f := range corpus {
		text := ""
		if f.ParsedText != nil {
			text = *f.ParsedText
		}
		fmt.Fprintf(&b, "\n--- FILE ID: %s (%s) ---\n%s\n", f.ID, f.FileName, text)
	}
	return b.String()
}
