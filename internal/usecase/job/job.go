// Package job implements the Admission Gate (spec §4.5): the synchronous
// use case that decides whether a submitted image becomes a job, and the
// read side of job status/query. It generalizes the teacher's
// ImageUseCase.UploadNewImage shape (mint id, store bytes, insert a row,
// enqueue, compensate on failure) onto the gate's five-step algorithm.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/piyushgit011/image-process/internal/dto"
	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/internal/repo"
	"github.com/piyushgit011/image-process/internal/usecase"
	"github.com/piyushgit011/image-process/pkg/logger"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

const inlinePayloadMaxBytes = 256 * 1024

// Gate is the Admission Gate use case.
type Gate struct {
	blobs    repo.BlobStore
	metadata repo.MetadataStore
	queue    repo.Queue
	models   usecase.ModelManager

	inlineMaxBytes int64

	logger logger.Interface
}

func New(
	blobs repo.BlobStore,
	metadata repo.MetadataStore,
	queue repo.Queue,
	models usecase.ModelManager,
	inlineMaxBytes int64,
	l logger.Interface,
) *Gate {
	if inlineMaxBytes <= 0 {
		inlineMaxBytes = inlinePayloadMaxBytes
	}

	return &Gate{
		blobs:          blobs,
		metadata:       metadata,
		queue:          queue,
		models:         models,
		inlineMaxBytes: inlineMaxBytes,
		logger:         l,
	}
}

// Submit runs the gate's five-step algorithm (spec §4.5).
func (g *Gate) Submit(ctx context.Context, req dto.SubmitRequest) (string, bool, string, error) {
	if len(req.Data) == 0 {
		return "", false, "validation-error", fmt.Errorf("job - Gate - Submit: %w", errs.ErrValidation)
	}

	jobID := uuid.New()
	uploadTS := time.Now().Unix()

	// step 2: vehicle pre-check.
	detected, vehicleDetection, err := g.models.DetectVehicles(ctx, req.Data)
	if err != nil {
		g.logger.Error(err, "job - Gate - Submit - DetectVehicles")
		return "", false, "validation-error", fmt.Errorf("job - Gate - Submit - DetectVehicles: %w", err)
	}
	if !detected {
		return "", false, "no-vehicle", nil
	}

	// step 3: store the original.
	originalKey := blobKey("original", jobID, uploadTS, req.ContentType)
	originalURL, err := g.blobs.Put(ctx, originalKey, req.Data, req.ContentType)
	if err != nil {
		g.logger.Error(err, "job - Gate - Submit - blobs.Put")
		return "", false, "storage-unavailable", fmt.Errorf("job - Gate - Submit - blobs.Put: %w", errs.ErrStorageUnavailable)
	}

	vehicleData, err := jsonMarshal(vehicleDetection)
	if err != nil {
		g.logger.Error(err, "job - Gate - Submit - marshal vehicle detection")
	}

	now := time.Now()
	record := &entity.Job{
		ID:                   uuid.New(),
		JobID:                jobID,
		Status:               entity.Submitted,
		OriginalFilename:     req.Filename,
		ContentType:          req.ContentType,
		BlobOriginalURL:      &originalURL,
		IsVehicleDetected:    true,
		FileSizeOriginal:     int64(len(req.Data)),
		VehicleDetectionData: vehicleData,
		CreatedAt:            now,
	}

	// step 4: insert the durable row.
	if err := g.metadata.Insert(ctx, record); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			g.logger.Error(err, "job - Gate - Submit - metadata.Insert duplicate")
			return "", false, "internal", fmt.Errorf("job - Gate - Submit - metadata.Insert: %w", err)
		}
		g.logger.Error(err, "job - Gate - Submit - metadata.Insert")
		return "", false, "internal", fmt.Errorf("job - Gate - Submit - metadata.Insert: %w", errs.ErrMetadataUnavailable)
	}

	// step 5: push the envelope, small payloads travel inline.
	var payload dto.PayloadRef
	if int64(len(req.Data)) <= g.inlineMaxBytes {
		payload = dto.InlinePayload(req.Data)
	} else {
		stagingKey := fmt.Sprintf("staging/%s", jobID)
		if _, err := g.blobs.Put(ctx, stagingKey, req.Data, req.ContentType); err != nil {
			g.logger.Error(err, "job - Gate - Submit - blobs.Put staging")
			g.failRow(ctx, jobID.String(), "queue-unavailable")
			return "", false, "storage-unavailable", fmt.Errorf("job - Gate - Submit - blobs.Put staging: %w", errs.ErrStorageUnavailable)
		}
		payload = dto.StagedPayload(stagingKey)
	}

	envelope := &entity.Envelope{
		JobID:            jobID,
		OriginalFilename: req.Filename,
		ContentType:      req.ContentType,
		PayloadRef:       payload,
		EnqueuedAt:       now,
		Attempts:         0,
		TraceID:          uuid.NewString(),
		UploadTS:         uploadTS,
	}

	if _, err := g.queue.Push(ctx, envelope); err != nil {
		g.logger.Error(err, "job - Gate - Submit - queue.Push")
		g.failRow(ctx, jobID.String(), "queue-unavailable")
		return "", false, "queue-unavailable", fmt.Errorf("job - Gate - Submit - queue.Push: %w", errs.ErrQueueUnavailable)
	}

	return jobID.String(), true, "", nil
}

// failRow marks a just-created row failed rather than deleting it, per
// spec.md §4.5 step 5 (a row must exist once vehicle detection passed).
func (g *Gate) failRow(ctx context.Context, jobID, reasonKind string) {
	if err := g.metadata.MarkFailed(ctx, jobID, reasonKind, 0); err != nil {
		g.logger.Error(err, "job - Gate - failRow - metadata.MarkFailed")
	}
}

// BatchSubmit invokes Submit per file; admission of each file is
// independent (spec §4.5 Batch variant).
func (g *Gate) BatchSubmit(ctx context.Context, reqs []dto.SubmitRequest) (dto.BatchResult, error) {
	result := dto.BatchResult{Results: make([]dto.SubmitResult, 0, len(reqs))}

	for _, req := range reqs {
		jobID, accepted, reason, err := g.Submit(ctx, req)
		if err != nil {
			result.Skipped++
			result.Results = append(result.Results, dto.SubmitResult{
				Filename: req.Filename,
				Accepted: false,
				Reason:   reason,
			})
			continue
		}

		if !accepted {
			result.Skipped++
		}

		result.Results = append(result.Results, dto.SubmitResult{
			Filename: req.Filename,
			Accepted: accepted,
			JobID:    jobID,
			Reason:   reason,
		})
	}

	return result, nil
}

func (g *Gate) GetStatus(ctx context.Context, jobID string) (dto.StatusPayload, error) {
	record, err := g.metadata.GetByJobID(ctx, jobID)
	if err != nil {
		return dto.StatusPayload{}, fmt.Errorf("job - Gate - GetStatus - metadata.GetByJobID: %w", err)
	}

	return toStatusPayload(record), nil
}

func (g *Gate) Query(ctx context.Context, filter entity.JobFilter, limit int) ([]*entity.Job, error) {
	records, err := g.metadata.Query(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("job - Gate - Query - metadata.Query: %w", err)
	}

	return records, nil
}

func toStatusPayload(record *entity.Job) dto.StatusPayload {
	payload := dto.StatusPayload{
		JobID:                 record.JobID.String(),
		Status:                string(record.Status),
		OriginalURL:           record.BlobOriginalURL,
		ProcessedURL:          record.BlobProcessedURL,
		ReasonKind:            record.FailureReason,
		ProcessingTimeSeconds: record.ProcessingTimeSeconds,
		ModelVersions:         dto.ModelVersions{VehicleModel: "placeholder-v1", FaceModel: "placeholder-v1"},
	}

	if record.ProcessedAt != nil {
		payload.UpdatedAt = record.ProcessedAt.Format(time.RFC3339)
	} else {
		payload.UpdatedAt = record.CreatedAt.Format(time.RFC3339)
	}

	if len(record.FaceDetectionData) > 0 {
		var meta entity.FaceMeta
		if err := jsonUnmarshal(record.FaceDetectionData, &meta); err == nil {
			payload.BlurMetadata = &dto.BlurMetadata{
				FaceCount:   meta.FaceCount,
				Boxes:       toDTOBoxes(meta.Boxes),
				Confidences: meta.Confidences,
				Reason:      meta.Reason,
			}
		}
	}

	if len(record.VehicleDetectionData) > 0 {
		var det entity.VehicleDetection
		if err := jsonUnmarshal(record.VehicleDetectionData, &det); err == nil {
			payload.DetectionMetadata = &dto.DetectionMetadata{
				Boxes:           toDTOBoxes(det.Boxes),
				Confidences:     det.Confidences,
				ClassIDs:        det.ClassIDs,
				DetectionCount:  det.DetectionCount,
				VehicleDetected: det.VehicleDetected,
			}
		}
	}

	return payload
}

func toDTOBoxes(boxes []entity.Box) []dto.Box {
	out := make([]dto.Box, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, dto.Box{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height})
	}
	return out
}

func blobKey(prefix string, jobID uuid.UUID, uploadTS int64, contentType string) string {
	ext := extFor(contentType)
	return fmt.Sprintf("%s/%s_%d%s", prefix, jobID, uploadTS, ext)
}

func extFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
