package dto

// SubmitRequest is one file of a BatchSubmit call.
type SubmitRequest struct {
	Data        []byte
	Filename    string
	ContentType string
}

// SubmitResult is the per-file outcome of an independent Submit within a
// batch; the spec leaves "no-vehicle" and validation/infra errors both as
// free-form reasons here, recording the resolved Open Question from
// SPEC_FULL.md (they are distinguished, not folded together).
type SubmitResult struct {
	Filename string
	Accepted bool
	JobID    string
	Reason   string
}

// BatchResult is the reply to BatchSubmit.
type BatchResult struct {
	Results []SubmitResult
	Skipped int
}

// StatusPayload is the job status payload returned by GetStatus.
type StatusPayload struct {
	JobID            string  `json:"job_id"`
	Status           string  `json:"status"`
	UpdatedAt        string  `json:"updated_at"`
	OriginalURL      *string `json:"original_url,omitempty"`
	ProcessedURL     *string `json:"processed_url,omitempty"`
	ReasonKind       string  `json:"reason_kind,omitempty"`
	BlurMetadata     *BlurMetadata     `json:"blur_metadata,omitempty"`
	DetectionMetadata *DetectionMetadata `json:"detection_metadata,omitempty"`
	ProcessingTimeSeconds *float64 `json:"processing_time_seconds,omitempty"`
	ModelVersions    ModelVersions `json:"model_versions"`
}

type BlurMetadata struct {
	FaceCount   int       `json:"face_count"`
	Boxes       []Box     `json:"boxes"`
	Confidences []float64 `json:"confidences"`
	Reason      string    `json:"reason,omitempty"`
}

type DetectionMetadata struct {
	Boxes           []Box     `json:"boxes"`
	Confidences     []float64 `json:"confidences"`
	ClassIDs        []string  `json:"class_ids"`
	DetectionCount  int       `json:"detection_count"`
	VehicleDetected bool      `json:"vehicle_detected"`
}

// Box mirrors entity.Box for the wire payload, kept free of an entity
// import so dto stays a leaf package.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ModelVersions identifies which model functions produced a result.
type ModelVersions struct {
	VehicleModel string `json:"vehicle_model"`
	FaceModel    string `json:"face_model"`
}

// StatsSnapshot merges the Stats Aggregator's live in-memory counters with
// the Metadata Store's durable Aggregate() (spec §4.8).
type StatsSnapshot struct {
	ProcessedTotal      int64   `json:"processed_total"`
	FailedTotal         int64   `json:"failed_total"`
	ThroughputPerMinute float64 `json:"throughput_per_minute"`
	AvgProcessingTime   float64 `json:"avg_processing_time_seconds"`
	ActiveWorkers       int64   `json:"active_workers"`
	QueueDepth          int64   `json:"queue_depth"`

	TotalRecorded    int64   `json:"total_recorded"`
	VehiclesDetected int64   `json:"vehicles_detected"`
	FacesDetected    int64   `json:"faces_detected"`
	FacesBlurred     int64   `json:"faces_blurred"`
	AvgProcessingAll float64 `json:"avg_processing_seconds_all_time"`
}
