package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrQueueEmpty is returned by ClaimNext when no pending item exists.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrAlreadyQueued is returned when a file already has an active
	// (pending or processing) queue item.
	ErrAlreadyQueued = errors.New("file already has an active queue item")

	// ErrNotFound is returned when a queue item or patient file is missing.
	ErrNotFound = errors.New("not found")
)

// Repository persists queue items.
type Repository interface {
	// Enqueue creates a pending item for the file. It fails with
	// ErrAlreadyQueued if an active item for the same file exists.
	Enqueue(ctx context.Context, item *QueueItem) error

	// ClaimNext atomically selects the oldest pending item and marks it
	// processing. Safe under concurrent callers: exactly one caller wins a
	// given item. Returns ErrQueueEmpty when nothing is pending.
	ClaimNext(ctx context.Context) (*QueueItem, error)

	// MarkCompleted and MarkFailed set the terminal state and processed_at.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	GetByID(ctx context.Context, id uuid.UUID) (*QueueItem, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*QueueItem, int, error)
}

// FileRepository persists patient files and the denormalized processing
// status mirror.
type FileRepository interface {
	Create(ctx context.Context, f *PatientFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientFile, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientFile, error)
	SetProcessingStatus(ctx context.Context, id uuid.UUID, status Status) error

	// StoreExtraction persists the extracted (or fallback) text, page count,
	// and the mirrored status in one statement.
	StoreExtraction(ctx context.Context, id uuid.UUID, text string, pageCount int, status Status) error
}
