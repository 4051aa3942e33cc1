package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the processing state shared by queue items and the denormalized
// mirror on patient files.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Active reports whether the status still occupies the queue. At most one
// active item may exist per file.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Terminal reports whether the status is final for this processing attempt.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// QueueItem is one attempt to process one uploaded file.
type QueueItem struct {
	ID           uuid.UUID  `json:"id"`
	FileID       uuid.UUID  `json:"file_id"`
	FilePath     string     `json:"file_path"`
	Status       Status     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// File type buckets feeding the three summarization corpora.
const (
	FileTypeHospitalStay = "hospital-stay"
	FileTypeInFacility   = "in-facility"
	FileTypeEngagement   = "engagement"
)

// PatientFile is an uploaded clinical document. ProcessingStatus mirrors the
// owning queue item's state and is advanced in the same transaction as every
// queue transition.
type PatientFile struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	PatientFullName  string    `json:"patient_full_name"`
	FileName         string    `json:"file_name"`
	FileType         string    `json:"file_type"`
	Month            int       `json:"month"`
	Year             int       `json:"year"`
	FilePath         string    `json:"file_path"`
	ParsedText       *string   `json:"parsed_text,omitempty"`
	PageCount        int       `json:"page_count"`
	ProcessingStatus Status    `json:"processing_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
