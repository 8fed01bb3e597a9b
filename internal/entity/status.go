package entity

// Status is the lifecycle state of a Job Record.
type Status string

const (
	Submitted  Status = "submitted"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"
	Rejected   Status = "rejected"
)
