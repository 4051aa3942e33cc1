package queue

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehq/carehq/internal/platform/blobstore"
	"github.com/carehq/carehq/internal/platform/db"
	"github.com/carehq/carehq/internal/platform/pdfextract"
)

// -- Mock repositories --

type mockQueueRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*QueueItem
	order []uuid.UUID
}

func newMockQueueRepo() *mockQueueRepo {
	return &mockQueueRepo{items: make(map[uuid.UUID]*QueueItem)}
}

func (m *mockQueueRepo) Enqueue(_ context.Context, item *QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.FileID == item.FileID && it.Status.Active() {
			return ErrAlreadyQueued
		}
	}
	item.ID = uuid.New()
	item.Status = StatusPending
	item.CreatedAt = time.Now()
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	return nil
}

func (m *mockQueueRepo) ClaimNext(_ context.Context) (*QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		it := m.items[id]
		if it.Status == StatusPending {
			it.Status = StatusProcessing
			cp := *it
			return &cp, nil
		}
	}
	return nil, ErrQueueEmpty
}

func (m *mockQueueRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	it.Status = StatusCompleted
	it.ProcessedAt = &now
	return nil
}

func (m *mockQueueRepo) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	it.Status = StatusFailed
	it.ErrorMessage = &msg
	it.ProcessedAt = &now
	return nil
}

func (m *mockQueueRepo) GetByID(_ context.Context, id uuid.UUID) (*QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockQueueRepo) ListRecent(_ context.Context, limit, offset int) ([]*QueueItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*QueueItem
	for _, id := range m.order {
		cp := *m.items[id]
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockFileRepo struct {
	mu    sync.Mutex
	files map[uuid.UUID]*PatientFile
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{files: make(map[uuid.UUID]*PatientFile)}
}

func (m *mockFileRepo) Create(_ context.Context, f *PatientFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	m.files[f.ID] = f
	return nil
}

func (m *mockFileRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockFileRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*PatientFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PatientFile
	for _, f := range m.files {
		if f.PatientID == patientID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func (m *mockFileRepo) SetProcessingStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	f.ProcessingStatus = status
	return nil
}

func (m *mockFileRepo) StoreExtraction(_ context.Context, id uuid.UUID, text string, pageCount int, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	f.ParsedText = &text
	f.PageCount = pageCount
	f.ProcessingStatus = status
	return nil
}

// -- Helpers --

func stubExtractor(res pdfextract.Result) Extractor {
	return ExtractorFunc(func(_ []byte, _ pdfextract.FileMeta) pdfextract.Result {
		return res
	})
}

func newTestService(t *testing.T, extractor Extractor) (*Service, *mockQueueRepo, *mockFileRepo, blobstore.Store) {
	t.Helper()
	items := newMockQueueRepo()
	files := newMockFileRepo()
	blobs := blobstore.NewMemoryStore()
	svc := NewService(items, files, blobs, extractor, db.PassthroughTxRunner{}, zerolog.Nop())
	return svc, items, files, blobs
}

func uploadTestFile(t *testing.T, svc *Service, patientID uuid.UUID, name string) *PatientFile {
	t.Helper()
	f := &PatientFile{
		PatientID:       patientID,
		PatientFullName: "Jane Doe",
		FileName:        name,
		FileType:        FileTypeHospitalStay,
		Month:           3,
		Year:            2025,
	}
	if _, err := svc.RegisterUpload(context.Background(), f, []byte("%PDF-1.4 test")); err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	return f
}

// -- Tests --

func TestRegisterUpload(t *testing.T) {
	svc, items, _, blobs := newTestService(t, stubExtractor(pdfextract.Result{}))
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	if f.ProcessingStatus != StatusPending {
		t.Errorf("processing status = %s, want pending", f.ProcessingStatus)
	}
	if ok, _ := blobs.Exists(context.Background(), f.FilePath); !ok {
		t.Errorf("blob not stored at %s", f.FilePath)
	}
	if len(items.items) != 1 {
		t.Fatalf("queue has %d items, want 1", len(items.items))
	}
}

func TestRegisterUpload_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{}))
	_, err := svc.RegisterUpload(context.Background(), &PatientFile{FileName: "x.pdf", FileType: FileTypeEngagement}, []byte("x"))
	if err == nil {
		t.Error("expected error for missing patient_id")
	}
	_, err = svc.RegisterUpload(context.Background(), &PatientFile{PatientID: uuid.New(), FileType: FileTypeEngagement}, []byte("x"))
	if err == nil {
		t.Error("expected error for missing file_name")
	}
}

func TestEnqueue_RefusesSecondActiveItem(t *testing.T) {
	svc, items, _, _ := newTestService(t, stubExtractor(pdfextract.Result{}))
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	err := items.Enqueue(context.Background(), &QueueItem{FileID: f.ID, FilePath: f.FilePath})
	if err != ErrAlreadyQueued {
		t.Errorf("second enqueue error = %v, want ErrAlreadyQueued", err)
	}
}

func TestProcessNext_EmptyQueue(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{}))
	_, err := svc.ProcessNext(context.Background())
	if err != ErrQueueEmpty {
		t.Errorf("error = %v, want ErrQueueEmpty", err)
	}
}

func TestProcessNext_Success(t *testing.T) {
	svc, items, files, _ := newTestService(t, stubExtractor(pdfextract.Result{
		PageCount: 4,
		Text:      "=== PAGE 1 ===\nDischarge summary",
	}))
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	res, err := svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if res.PageCount != 4 {
		t.Errorf("page count = %d, want 4", res.PageCount)
	}

	it, _ := items.GetByID(context.Background(), res.Item.ID)
	if it.Status != StatusCompleted || it.ProcessedAt == nil {
		t.Errorf("queue item status = %s, processed_at = %v", it.Status, it.ProcessedAt)
	}
	got, _ := files.GetByID(context.Background(), f.ID)
	if got.ProcessingStatus != StatusCompleted {
		t.Errorf("file status = %s, want completed", got.ProcessingStatus)
	}
	if got.ParsedText == nil || !strings.Contains(*got.ParsedText, "Discharge summary") {
		t.Errorf("parsed text not stored: %v", got.ParsedText)
	}
	if got.PageCount != 4 {
		t.Errorf("file page count = %d, want 4", got.PageCount)
	}
}

func TestProcessNext_ExtractionFailure(t *testing.T) {
	svc, items, files, _ := newTestService(t, stubExtractor(pdfextract.Result{
		Failed: true,
		Reason: "corrupt xref table",
		Text:   "DOCUMENT TEXT UNAVAILABLE",
	}))
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	res, err := svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if res.Error != "corrupt xref table" {
		t.Errorf("error = %q", res.Error)
	}

	it, _ := items.GetByID(context.Background(), res.Item.ID)
	if it.Status != StatusFailed {
		t.Errorf("queue item status = %s, want failed", it.Status)
	}
	if it.ErrorMessage == nil || *it.ErrorMessage != "corrupt xref table" {
		t.Errorf("error message = %v", it.ErrorMessage)
	}
	// Fallback text is kept on the file for diagnostics, status mirrors failed.
	got, _ := files.GetByID(context.Background(), f.ID)
	if got.ProcessingStatus != StatusFailed {
		t.Errorf("file status = %s, want failed", got.ProcessingStatus)
	}
	if got.ParsedText == nil || !strings.Contains(*got.ParsedText, "DOCUMENT TEXT UNAVAILABLE") {
		t.Errorf("fallback text not stored: %v", got.ParsedText)
	}
}

func TestProcessNext_MissingBlob(t *testing.T) {
	svc, items, files, blobs := newTestService(t, stubExtractor(pdfextract.Result{}))
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")
	if err := blobs.Delete(context.Background(), f.FilePath); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	res, err := svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	it, _ := items.GetByID(context.Background(), res.Item.ID)
	if it.Status != StatusFailed {
		t.Errorf("queue item status = %s, want failed", it.Status)
	}
	got, _ := files.GetByID(context.Background(), f.ID)
	if got.ProcessingStatus != StatusFailed {
		t.Errorf("file status = %s, want failed", got.ProcessingStatus)
	}
}

// Concurrent callers each claim a distinct item; nothing is processed twice.
func TestProcessNext_ConcurrentClaims(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{PageCount: 1, Text: "ok"}))

	const n = 16
	for i := 0; i < n; i++ {
		uploadTestFile(t, svc, uuid.New(), "file.pdf")
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ProcessNext(context.Background())
			if err != nil {
				t.Errorf("ProcessNext: %v", err)
				return
			}
			mu.Lock()
			seen[res.Item.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("claimed %d distinct items, want %d", len(seen), n)
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("item %s claimed %d times", id, count)
		}
	}
	if _, err := svc.ProcessNext(context.Background()); err != ErrQueueEmpty {
		t.Errorf("after drain, error = %v, want ErrQueueEmpty", err)
	}
}

func TestRequeue(t *testing.T) {
	svc, _, files, _ := newTestService(t, stubExtractor(pdfextract.Result{
		Failed: true, Reason: "unreadable", Text: "DOCUMENT TEXT UNAVAILABLE",
	}))
	f := uploadTestFile(t, svc, uuid.New(), "stay.pdf")

	// Active item blocks a requeue.
	if _, err := svc.Requeue(context.Background(), f.ID); err != ErrAlreadyQueued {
		t.Errorf("requeue while active: %v, want ErrAlreadyQueued", err)
	}

	if _, err := svc.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}

	item, err := svc.Requeue(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if item.Status != StatusPending {
		t.Errorf("requeued item status = %s, want pending", item.Status)
	}
	got, _ := files.GetByID(context.Background(), f.ID)
	if got.ProcessingStatus != StatusPending {
		t.Errorf("file status = %s, want pending", got.ProcessingStatus)
	}
}

func TestRequeue_UnknownFile(t *testing.T) {
	svc, _, _, _ := newTestService(t, stubExtractor(pdfextract.Result{}))
	if _, err := svc.Requeue(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
