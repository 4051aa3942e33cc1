package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehq/carehq/internal/platform/blobstore"
	"github.com/carehq/carehq/internal/platform/db"
	"github.com/carehq/carehq/internal/platform/pdfextract"
)

// Extractor turns a downloaded blob into page count and text. It never
// returns an error; failures surface through Result.Failed.
type Extractor interface {
	Extract(blob []byte, meta pdfextract.FileMeta) pdfextract.Result
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(blob []byte, meta pdfextract.FileMeta) pdfextract.Result

func (f ExtractorFunc) Extract(blob []byte, meta pdfextract.FileMeta) pdfextract.Result {
	return f(blob, meta)
}

// ProcessResult describes the outcome of one claim-and-process cycle.
type ProcessResult struct {
	Item      *QueueItem `json:"item"`
	FileID    uuid.UUID  `json:"file_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Status    Status     `json:"status"`
	PageCount int        `json:"page_count"`
	Error     string     `json:"error,omitempty"`
}

// Service drives the durable work queue. Every queue transition advances the
// owning patient file's processing_status inside the same transaction.
type Service struct {
	items     Repository
	files     FileRepository
	blobs     blobstore.Store
	extractor Extractor
	tx        db.TxRunner
	log       zerolog.Logger
}

func NewService(items Repository, files FileRepository, blobs blobstore.Store, extractor Extractor, tx db.TxRunner, log zerolog.Logger) *Service {
	if extractor == nil {
		extractor = ExtractorFunc(pdfextract.Extract)
	}
	return &Service{items: items, files: files, blobs: blobs, extractor: extractor, tx: tx, log: log}
}

// RegisterUpload stores the blob, records the patient file, and enqueues it
// for processing.
func (s *Service) RegisterUpload(ctx context.Context, f *PatientFile, data []byte) (*QueueItem, error) {
	if f.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if f.FileName == "" {
		return nil, fmt.Errorf("file_name is required")
	}
	if f.FileType == "" {
		return nil, fmt.Errorf("file_type is required")
	}

	if f.FilePath == "" {
		f.FilePath = blobstore.PatientFilePath(f.PatientID.String(), f.Year, f.Month, f.FileName)
	}
	if err := s.blobs.Put(ctx, f.FilePath, data, blobstore.PutOptions{
		ContentType: "application/pdf",
		Overwrite:   true,
	}); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	var item *QueueItem
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		f.ProcessingStatus = StatusPending
		if err := s.files.Create(ctx, f); err != nil {
			return fmt.Errorf("create patient file: %w", err)
		}
		item = &QueueItem{FileID: f.ID, FilePath: f.FilePath}
		return s.items.Enqueue(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("file_id", f.ID.String()).
		Str("patient_id", f.PatientID.String()).
		Str("path", f.FilePath).
		Msg("file enqueued")
	return item, nil
}

// Requeue creates a fresh pending item for a file whose previous attempt
// finished, so operators can trigger reprocessing. Fails with
// ErrAlreadyQueued while an active item exists.
func (s *Service) Requeue(ctx context.Context, fileID uuid.UUID) (*QueueItem, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	var item *QueueItem
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		item = &QueueItem{FileID: f.ID, FilePath: f.FilePath}
		if err := s.items.Enqueue(ctx, item); err != nil {
			return err
		}
		return s.files.SetProcessingStatus(ctx, f.ID, StatusPending)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("file_id", fileID.String()).Msg("file requeued")
	return item, nil
}

// ProcessNext claims the oldest pending item and runs extraction for it.
// Returns ErrQueueEmpty when nothing is pending. Extraction failure is not an
// error return: the item lands in StatusFailed with the fallback text stored
// for diagnostics, and the result reports the failure.
func (s *Service) ProcessNext(ctx context.Context) (*ProcessResult, error) {
	var item *QueueItem
	var file *PatientFile

	// Claim and mirror the processing status in one transaction.
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.ClaimNext(ctx)
		if err != nil {
			return err
		}
		file, err = s.files.GetByID(ctx, item.FileID)
		if err != nil {
			return fmt.Errorf("load patient file %s: %w", item.FileID, err)
		}
		return s.files.SetProcessingStatus(ctx, item.FileID, StatusProcessing)
	})
	if err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("queue_item_id", item.ID.String()).
		Str("file_id", item.FileID.String()).
		Logger()
	log.Info().Msg("queue item claimed")

	blob, err := s.blobs.Get(ctx, item.FilePath)
	if err != nil {
		msg := fmt.Sprintf("download blob: %v", err)
		if ferr := s.finish(ctx, item, StatusFailed, msg, nil); ferr != nil {
			return nil, ferr
		}
		log.Error().Err(err).Msg("blob download failed")
		return &ProcessResult{
			Item: item, FileID: item.FileID, PatientID: file.PatientID,
			Status: StatusFailed, Error: msg,
		}, nil
	}

	res := s.extractor.Extract(blob, pdfextract.FileMeta{
		Name:     file.FileName,
		Path:     file.FilePath,
		MIMEType: "application/pdf",
		Size:     int64(len(blob)),
	})

	// Extraction failure terminates the attempt as failed, with the fallback
	// text stored on the file for diagnostic display.
	status := StatusCompleted
	errMsg := ""
	if res.Failed {
		status = StatusFailed
		errMsg = res.Reason
	}
	if err := s.finish(ctx, item, status, errMsg, &res); err != nil {
		return nil, err
	}

	log.Info().
		Str("status", string(status)).
		Int("page_count", res.PageCount).
		Msg("queue item processed")

	return &ProcessResult{
		Item: item, FileID: item.FileID, PatientID: file.PatientID,
		Status: status, PageCount: res.PageCount, Error: errMsg,
	}, nil
}

// finish applies the terminal transition to the queue item and the file
// mirror atomically.
func (s *Service) finish(ctx context.Context, item *QueueItem, status Status, errMsg string, res *pdfextract.Result) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if status == StatusFailed {
			if err := s.items.MarkFailed(ctx, item.ID, errMsg); err != nil {
				return err
			}
		} else {
			if err := s.items.MarkCompleted(ctx, item.ID); err != nil {
				return err
			}
		}
		if res != nil {
			return s.files.StoreExtraction(ctx, item.FileID, res.Text, res.PageCount, status)
		}
		return s.files.SetProcessingStatus(ctx, item.FileID, status)
	})
}

// ListItems returns the most recent queue items with a total count.
func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	return s.items.ListRecent(ctx, limit, offset)
}

// FilesForPatient returns the patient's uploaded files.
func (s *Service) FilesForPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientFile, error) {
	return s.files.ListByPatient(ctx, patientID)
}
