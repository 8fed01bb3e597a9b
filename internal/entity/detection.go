package entity

// Box is a pixel-space bounding box, (X, Y) being the top-left corner.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VehicleDetection is the opaque structured output of the vehicle pass,
// persisted as-is in the vehicle_detection_data column.
type VehicleDetection struct {
	VehicleDetected bool      `json:"vehicle_detected"`
	DetectionCount  int       `json:"detection_count"`
	Boxes           []Box     `json:"boxes"`
	Confidences     []float64 `json:"confidences"`
	ClassIDs        []string  `json:"class_ids"`
}

// FaceMeta is the opaque structured output of the face pass, persisted
// as-is in the face_detection_data column.
type FaceMeta struct {
	FaceCount   int       `json:"face_count"`
	Boxes       []Box     `json:"boxes"`
	Confidences []float64 `json:"confidences"`
	Reason      string    `json:"reason,omitempty"`
}
