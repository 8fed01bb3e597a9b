// Package detect holds the Model Manager's default, swappable model
// functions. It generalizes the teacher's infrastructure/processor
// decode/encode idiom (disintegration/imaging + golang.org/x/image) from
// generic image editing onto the two fixed-signature model functions the
// spec requires: vehicle detection and face-detect-and-blur. Real
// detector bindings (YOLO, face-recognition) can be swapped in by
// replacing VehicleDetectFunc/FaceBlurFunc without touching call sites.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

var vehicleClasses = []string{"car", "bus", "truck", "motorcycle"}

// VehicleDetectFunc is the fixed signature spec §4.4 requires of the
// vehicle model.
type VehicleDetectFunc func(ctx context.Context, img image.Image) (entity.VehicleDetection, error)

// FaceBlurFunc is the fixed signature spec §4.4 requires of the face
// model; it receives a mutable clone of the decoded image and returns the
// blurred result plus its metadata.
type FaceBlurFunc func(ctx context.Context, img image.Image) (image.Image, entity.FaceMeta, error)

// Manager is the Model Manager (spec §4.4): a lazily-initialized,
// process-scoped holder of the two model functions plus the centralized
// DetectVehicles/DetectAndBlurFaces surface both the Admission Gate and
// the Worker call through, so detection logic never drifts between call
// sites.
type Manager struct {
	once sync.Once

	carThreshold  float64
	faceThreshold float64

	vehicleFn VehicleDetectFunc
	faceFn    FaceBlurFunc
}

func New(carThreshold, faceThreshold float64) *Manager {
	return &Manager{carThreshold: carThreshold, faceThreshold: faceThreshold}
}

// WithModels overrides the default placeholder detectors, e.g. with real
// YOLO/face-recognition bindings. Must be called before the first
// DetectVehicles/DetectAndBlurFaces call.
func (m *Manager) WithModels(vehicleFn VehicleDetectFunc, faceFn FaceBlurFunc) *Manager {
	m.vehicleFn = vehicleFn
	m.faceFn = faceFn
	return m
}

func (m *Manager) ensureLoaded() {
	m.once.Do(func() {
		if m.vehicleFn == nil {
			m.vehicleFn = defaultVehicleDetect
		}
		if m.faceFn == nil {
			m.faceFn = defaultFaceBlur
		}
	})
}

func (m *Manager) DetectVehicles(ctx context.Context, data []byte) (bool, entity.VehicleDetection, error) {
	m.ensureLoaded()

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return false, entity.VehicleDetection{}, fmt.Errorf("detect - DetectVehicles - imaging.Decode: %w", errs.ErrDecode)
	}

	detection, err := m.vehicleFn(ctx, img)
	if err != nil {
		return false, entity.VehicleDetection{}, fmt.Errorf("detect - DetectVehicles - vehicleFn: %w", errs.ErrModel)
	}

	accepted := false
	for i, conf := range detection.Confidences {
		if conf < m.carThreshold {
			continue
		}
		if i < len(detection.ClassIDs) && isVehicleClass(detection.ClassIDs[i]) {
			accepted = true
			break
		}
	}

	detection.VehicleDetected = accepted

	return accepted, detection, nil
}

func (m *Manager) DetectAndBlurFaces(ctx context.Context, data []byte) ([]byte, entity.FaceMeta, error) {
	m.ensureLoaded()

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, entity.FaceMeta{}, fmt.Errorf("detect - DetectAndBlurFaces - imaging.Decode: %w", errs.ErrDecode)
	}

	blurred, meta, err := m.faceFn(ctx, img)
	if err != nil {
		return nil, entity.FaceMeta{}, fmt.Errorf("detect - DetectAndBlurFaces - faceFn: %w", errs.ErrModel)
	}

	kept := entity.FaceMeta{Boxes: nil, Confidences: nil}
	for i, conf := range meta.Confidences {
		if conf < m.faceThreshold {
			continue
		}
		kept.Boxes = append(kept.Boxes, meta.Boxes[i])
		kept.Confidences = append(kept.Confidences, conf)
	}
	kept.FaceCount = len(kept.Boxes)

	contentType := sniffContentType(data)

	encoded, err := encodeImage(blurred, contentType)
	if err != nil {
		return nil, entity.FaceMeta{}, fmt.Errorf("detect - DetectAndBlurFaces - encodeImage: %w", err)
	}

	return encoded, kept, nil
}

func isVehicleClass(class string) bool {
	for _, c := range vehicleClasses {
		if c == class {
			return true
		}
	}
	return false
}

// defaultVehicleDetect is a deterministic placeholder: it derives 0-2
// pseudo-detections from a checksum of the decoded pixel data so the same
// bytes always produce the same verdict (idempotence property, spec §8),
// without requiring a real inference runtime to exercise the pipeline.
func defaultVehicleDetect(_ context.Context, img image.Image) (entity.VehicleDetection, error) {
	seed := checksum(img)

	count := int(seed % 3)
	det := entity.VehicleDetection{DetectionCount: count}

	bounds := img.Bounds()
	for i := 0; i < count; i++ {
		conf := 0.5 + float64((seed>>uint(i*4))%50)/100
		det.Confidences = append(det.Confidences, conf)
		det.ClassIDs = append(det.ClassIDs, vehicleClasses[int(seed>>uint(i*2))%len(vehicleClasses)])
		det.Boxes = append(det.Boxes, boxFor(bounds, i))
	}

	return det, nil
}

// defaultFaceBlur mirrors defaultVehicleDetect's determinism for faces,
// then applies a real Gaussian blur (imaging.Blur) over each detected
// region, matching the teacher's imaging.Clone/imaging.Blur idiom.
func defaultFaceBlur(_ context.Context, img image.Image) (image.Image, entity.FaceMeta, error) {
	seed := checksum(img) / 7

	count := int(seed % 2)
	meta := entity.FaceMeta{FaceCount: count}

	out := imaging.Clone(img)
	bounds := img.Bounds()

	for i := 0; i < count; i++ {
		conf := 0.6 + float64((seed>>uint(i*4))%40)/100
		box := boxFor(bounds, i)

		meta.Boxes = append(meta.Boxes, box)
		meta.Confidences = append(meta.Confidences, conf)

		region := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
		cropped := imaging.Crop(out, region)
		blurred := imaging.Blur(cropped, 12)
		out = imaging.Paste(out, blurred, image.Pt(box.X, box.Y))
	}

	return out, meta, nil
}

func boxFor(bounds image.Rectangle, i int) entity.Box {
	w, h := bounds.Dx(), bounds.Dy()
	size := minInt(w, h) / 4
	if size < 8 {
		size = 8
	}

	x := (i * size) % maxInt(w-size, 1)
	y := (i * size) % maxInt(h-size, 1)

	return entity.Box{X: x, Y: y, Width: size, Height: size}
}

func checksum(img image.Image) uint32 {
	bounds := img.Bounds()
	buf := make([]byte, 0, 64)

	for y := bounds.Min.Y; y < bounds.Max.Y; y += maxInt(bounds.Dy()/8, 1) {
		for x := bounds.Min.X; x < bounds.Max.X; x += maxInt(bounds.Dx()/8, 1) {
			r, g, b, a := img.At(x, y).RGBA()
			buf = append(buf, byte(r), byte(g), byte(b), byte(a))
		}
	}

	return crc32.ChecksumIEEE(buf)
}

func sniffContentType(data []byte) string {
	switch {
	case len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) > 8 && string(data[1:4]) == "PNG":
		return "image/png"
	case len(data) > 6 && string(data[:3]) == "GIF":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func encodeImage(img image.Image, contentType string) ([]byte, error) {
	var buf bytes.Buffer
	var format imaging.Format

	switch contentType {
	case "image/png":
		format = imaging.PNG
	case "image/gif":
		format = imaging.GIF
	default:
		format = imaging.JPEG
	}

	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("detect - encodeImage - imaging.Encode: %w", err)
	}

	return buf.Bytes(), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
