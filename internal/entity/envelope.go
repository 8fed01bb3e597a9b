package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/piyushgit011/image-process/internal/dto"
)

// Envelope is the unit carried by the queue, at-least-once, between the
// Admission Gate and a Worker.
type Envelope struct {
	JobID            uuid.UUID     `json:"job_id"`
	OriginalFilename string        `json:"original_filename"`
	ContentType      string        `json:"content_type"`
	PayloadRef       dto.PayloadRef `json:"payload_ref"`
	EnqueuedAt       time.Time     `json:"enqueued_at"`
	Attempts         int           `json:"attempts"`
	TraceID          string        `json:"trace_id"`
	// UploadTS is chosen once at admission and carried on every
	// redelivery so blob-store keys stay stable across retries.
	UploadTS int64 `json:"upload_ts"`
}
