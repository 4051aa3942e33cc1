package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehq/carehq/internal/platform/pdfextract"
)

func newTestHandler(t *testing.T, extractor Extractor) (*Handler, *echo.Echo) {
	t.Helper()
	svc, _, _, _ := newTestService(t, extractor)
	return NewHandler(svc), echo.New()
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, contents []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(contents); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHandler_UploadFile(t *testing.T) {
	h, e := newTestHandler(t, stubExtractor(pdfextract.Result{}))
	body, ctype := multipartUpload(t, map[string]string{
		"patient_full_name": "Jane Doe",
		"file_type":         FileTypeHospitalStay,
		"month":             "3",
		"year":              "2025",
	}, "stay.pdf", []byte("%PDF-1.4"))

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, ctype)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.UploadFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := resp["queue_item"]; !ok {
		t.Error("response missing queue_item")
	}
}

func TestHandler_UploadFile_InvalidPatientID(t *testing.T) {
	h, e := newTestHandler(t, stubExtractor(pdfextract.Result{}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.UploadFile(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestHandler_ProcessNext_Empty(t *testing.T) {
	h, e := newTestHandler(t, stubExtractor(pdfextract.Result{}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	err := h.ProcessNext(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 error, got %v", err)
	}
}

func TestHandler_ProcessNext(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{PageCount: 2, Text: "ok"}))
	h := NewHandler(svc)
	e := echo.New()
	uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h.ProcessNext(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var res ProcessResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Status != StatusCompleted || res.PageCount != 2 {
		t.Errorf("got status=%s pages=%d", res.Status, res.PageCount)
	}
}

func TestHandler_Requeue_Conflict(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{}))
	h := NewHandler(svc)
	e := echo.New()
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("fileId")
	c.SetParamValues(f.ID.String())

	err := h.Requeue(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Errorf("expected 409 error, got %v", err)
	}
}

func TestHandler_ListItems(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{}))
	h := NewHandler(svc)
	e := echo.New()
	uploadTestFile(t, svc, uuid.New(), "a.pdf")
	uploadTestFile(t, svc, uuid.New(), "b.pdf")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h.ListItems(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}
