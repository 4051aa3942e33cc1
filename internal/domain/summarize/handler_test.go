package summarize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carehq/carehq/internal/platform/llm"
)

func newHandlerFixture(chat llm.Chatter) (*Handler, *mockHighlightRepo, *mockPatientFiles, *echo.Echo) {
	eng, _ := newTestEngine(chat)
	repo := newMockHighlightRepo()
	files := newMockPatientFiles()
	svc := NewService(repo, files, eng, 1, zerolog.Nop())
	return NewHandler(svc), repo, files, echo.New()
}

func TestHandler_Generate(t *testing.T) {
	patientID := uuid.New()
	fileID := uuid.New()
	chat := &mockChatter{replies: map[Section]llm.Reply{
		SectionHospital: {Content: sectionJSON(SectionHospital, fileID), TotalTokens: 10},
	}}
	h, _, files, e := newHandlerFixture(chat)
	files.add(patientID, hospitalFile(fileID, "Jane Doe"))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := h.Generate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// A run deferred by the token ledger surfaces as 429, not 500.
func TestHandler_Generate_RateLimitDeferred(t *testing.T) {
	patientID := uuid.New()
	fileID := uuid.New()

	ledger := NewTokenLedger()
	th := NewThrottler(ledger, 100, 0, time.Millisecond, time.Millisecond)
	th.sleep = func(context.Context, time.Duration) error { return nil }
	ledger.Record(500)
	eng := NewEngine(&mockChatter{}, th, 0.2, 2048, 1, zerolog.Nop())

	files := newMockPatientFiles()
	files.add(patientID, hospitalFile(fileID, "Jane Doe"))
	svc := NewService(newMockHighlightRepo(), files, eng, 1, zerolog.Nop())
	h := NewHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	err := h.Generate(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 error, got %v", err)
	}
}

func TestHandler_Generate_InvalidID(t *testing.T) {
	h, _, _, e := newHandlerFixture(&mockChatter{})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.Generate(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestHandler_GetHighlights_NotFound(t *testing.T) {
	h, _, _, e := newHandlerFixture(&mockChatter{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetHighlights(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 error, got %v", err)
	}
}
