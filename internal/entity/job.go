package entity

import (
	"time"

	"github.com/google/uuid"
)

// Job is the durable per-job row (the "Job Record"), one per job_id.
type Job struct {
	ID     uuid.UUID `json:"id"`
	JobID  uuid.UUID `json:"job_id"`
	Status Status    `json:"status"`

	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`

	BlobOriginalURL  *string `json:"blob_original_url,omitempty"`
	BlobProcessedURL *string `json:"blob_processed_url,omitempty"`

	IsVehicleDetected bool `json:"is_vehicle_detected"`
	IsFaceDetected    bool `json:"is_face_detected"`
	IsFaceBlurred     bool `json:"is_face_blurred"`

	FileSizeOriginal  int64  `json:"file_size_original"`
	FileSizeProcessed *int64 `json:"file_size_processed,omitempty"`

	ProcessingTimeSeconds *float64 `json:"processing_time_seconds,omitempty"`

	VehicleDetectionData []byte `json:"vehicle_detection_data,omitempty"`
	FaceDetectionData    []byte `json:"face_detection_data,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// JobFilter narrows a Query over the processed_images table.
type JobFilter struct {
	IsVehicleDetected *bool
	IsFaceDetected    *bool
	IsFaceBlurred     *bool
}

// Aggregate is the server-side computed stats the Metadata Store returns.
type Aggregate struct {
	Total               int64   `json:"total"`
	VehiclesDetected    int64   `json:"vehicles_detected"`
	FacesDetected       int64   `json:"faces_detected"`
	FacesBlurred        int64   `json:"faces_blurred"`
	AvgProcessingSeconds float64 `json:"avg_processing_seconds"`
}
