package summarize

import (
	"strings"
	"testing"
)

func TestRedact_Example(t *testing.T) {
	got := Redact("Call John Smith at 555-123-4567", "John Smith")

	for _, banned := range []string{"John", "Smith", "555-123-4567", "123", "4567"} {
		if strings.Contains(got, banned) {
			t.Errorf("output %q still contains %q", got, banned)
		}
	}
	if !strings.Contains(got, "the patient") {
		t.Errorf("output %q missing role phrase", got)
	}
	if !strings.Contains(got, "[PHONE REDACTED]") {
		t.Errorf("output %q missing phone marker", got)
	}
}

func TestRedact_Idempotent(t *testing.T) {
	cases := []struct {
		text string
		name string
	}{
		{"John Smith was discharged. Call john at 555.123.4567 or j.smith@example.com.", "John Smith"},
		{"SSN on file: 123-45-6789.", "Mary Jones"},
		{"no pii here at all", "Al Li"},
		{"The patient reports pain.", "The Manning"},
	}
	for _, tc := range cases {
		once := Redact(tc.text, tc.name)
		twice := Redact(once, tc.name)
		if once != twice {
			t.Errorf("Redact not idempotent for %q/%q:\n once: %q\ntwice: %q", tc.text, tc.name, once, twice)
		}
	}
}

func TestRedact_FullNameCaseInsensitive(t *testing.T) {
	got := Redact("JOHN SMITH and john smith and John Smith", "John Smith")
	if strings.Contains(strings.ToLower(got), "john") {
		t.Errorf("output %q retains name", got)
	}
}

func TestRedact_ShortNameTokensKept(t *testing.T) {
	// Tokens under 3 characters are too collision-prone to scrub alone.
	got := Redact("Al was seen. Always check vitals.", "Al Pacino")
	if !strings.Contains(got, "Always") {
		t.Errorf("short-token pass damaged unrelated word: %q", got)
	}
	if !strings.Contains(got, "Al was seen") {
		t.Errorf("two-letter first name should not be redacted alone: %q", got)
	}
}

func TestRedact_WholeWordOnly(t *testing.T) {
	got := Redact("Johnson syndrome noted for John.", "John Smith")
	if !strings.Contains(got, "Johnson") {
		t.Errorf("whole-word pass damaged %q", got)
	}
	if strings.Contains(got, "for John.") {
		t.Errorf("standalone first name survived: %q", got)
	}
}

func TestRedact_PhoneBeforeSSN(t *testing.T) {
	// Ten digits must be consumed by the phone pass, not half-eaten by the
	// nine-digit SSN pattern.
	got := Redact("phone 555-123-4567, ssn 123-45-6789", "X Y")
	if !strings.Contains(got, "[PHONE REDACTED]") {
		t.Errorf("phone not redacted: %q", got)
	}
	if !strings.Contains(got, "[SSN REDACTED]") {
		t.Errorf("ssn not redacted: %q", got)
	}
}

func TestRedact_Email(t *testing.T) {
	got := Redact("Reach me at jane.doe+care@example.org.", "Jane Doe")
	if strings.Contains(got, "example.org") {
		t.Errorf("email survived: %q", got)
	}
	if !strings.Contains(got, "[EMAIL REDACTED]") {
		t.Errorf("missing email marker: %q", got)
	}
}

func TestRedact_EmptyName(t *testing.T) {
	got := Redact("Call 555-123-4567", "")
	if !strings.Contains(got, "[PHONE REDACTED]") {
		t.Errorf("pattern passes must run without a name: %q", got)
	}
}
