package errs

import "errors"

// Error kinds surfaced across the Admission Gate and Worker boundaries.
// Checked with errors.Is; never asserted on by type.
var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrValidation         = errors.New("validation error")
	ErrNoVehicle          = errors.New("no vehicle detected")
	ErrQueueUnavailable   = errors.New("queue unavailable")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMetadataUnavailable = errors.New("metadata store unavailable")
	ErrBackpressure       = errors.New("queue backpressure")
	ErrDecode             = errors.New("image decode error")
	ErrModel              = errors.New("model error")
	ErrDuplicate          = errors.New("duplicate job id")
	ErrTimeout            = errors.New("step timeout")
	ErrShuttingDown       = errors.New("dispatcher shutting down")
)
