package summarize

import (
	"regexp"
	"strings"
)

const rolePlaceholder = "the patient"

var (
	phoneRe = regexp.MustCompile(`\d{3}[-.]?\d{3}[-.]?\d{4}`)
	ssnRe   = regexp.MustCompile(`\d{3}[-.]?\d{2}[-.]?\d{4}`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// Redact scrubs the patient's name and common PII patterns from text. It is a
// best-effort second line of defense behind the prompt-level identity rules
// and runs on every model-derived string before persistence. Passes are
// ordered: full name first, then each name token, then phone before SSN so a
// ten-digit phone is not half-consumed by the nine-digit SSN pattern.
// Idempotent: replacement strings never re-match any pass.
func Redact(text, patientFullName string) string {
	out := text

	full := strings.TrimSpace(patientFullName)
	if full != "" {
		out = replaceWord(out, full, rolePlaceholder)

		tokens := strings.Fields(full)
		if len(tokens) > 1 {
			first, last := tokens[0], tokens[len(tokens)-1]
			if len(first) >= 3 {
				out = replaceWord(out, first, rolePlaceholder)
			}
			if len(last) >= 3 {
				out = replaceWord(out, last, rolePlaceholder)
			}
		}
	}

	out = phoneRe.ReplaceAllString(out, "[PHONE REDACTED]")
	out = ssnRe.ReplaceAllString(out, "[SSN REDACTED]")
	out = emailRe.ReplaceAllString(out, "[EMAIL REDACTED]")
	return out
}

// replaceWord replaces whole-word, case-insensitive occurrences of name.
func replaceWord(text, name, replacement string) string {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return text
	}
	// A name that occurs inside the replacement itself would never converge.
	if re.MatchString(replacement) {
		return text
	}
	return re.ReplaceAllString(text, replacement)
}
