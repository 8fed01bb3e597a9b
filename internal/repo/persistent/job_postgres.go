package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/pkg/postgres"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

const (
	jobsTable = "processed_images"

	colID                = "id"
	colJobID             = "job_id"
	colOriginalFilename  = "original_filename"
	colContentType       = "content_type"
	colBlobOriginalURL   = "blob_original_url"
	colBlobProcessedURL  = "blob_processed_url"
	colIsVehicleDetected = "is_vehicle_detected"
	colIsFaceDetected    = "is_face_detected"
	colIsFaceBlurred     = "is_face_blurred"
	colFileSizeOriginal  = "file_size_original"
	colFileSizeProcessed = "file_size_processed"
	colProcessingTime    = "processing_time_seconds"
	colVehicleData       = "vehicle_detection_data"
	colFaceData          = "face_detection_data"
	colFailureReason     = "failure_reason"
	colStatus            = "status"
	colCreatedAt         = "created_at"
	colProcessedAt       = "processed_at"

	_uniqueViolationCode = "23505"
)

// JobMetadataRepo is the Metadata Store Adapter (spec §4.3), generalizing
// the teacher's ImageMetadataRepo squirrel/pgx idiom onto the
// processed_images table.
type JobMetadataRepo struct {
	*postgres.Postgres
}

func NewJobMetadataRepo(pg *postgres.Postgres) *JobMetadataRepo {
	return &JobMetadataRepo{pg}
}

func (r *JobMetadataRepo) Insert(ctx context.Context, job *entity.Job) error {
	vehicleData := job.VehicleDetectionData
	if vehicleData == nil {
		vehicleData = []byte("{}")
	}

	sql, args, err := r.Builder.
		Insert(jobsTable).
		Columns(
			colID, colJobID, colOriginalFilename, colContentType,
			colBlobOriginalURL, colIsVehicleDetected, colFileSizeOriginal,
			colVehicleData, colStatus, colCreatedAt,
		).
		Values(
			job.ID, job.JobID, job.OriginalFilename, job.ContentType,
			job.BlobOriginalURL, job.IsVehicleDetected, job.FileSizeOriginal,
			vehicleData, job.Status, job.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - Insert - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == _uniqueViolationCode {
			return fmt.Errorf("JobMetadataRepo - Insert: %w", errs.ErrDuplicate)
		}
		return fmt.Errorf("JobMetadataRepo - Insert - executor.Exec: %w", errs.ErrMetadataUnavailable)
	}

	return nil
}

// MarkProcessing is a best-effort transition (spec §4.6 step 3, not a
// hard precondition for correctness) so status reads reflect in-flight
// work; it never overwrites a terminal row.
func (r *JobMetadataRepo) MarkProcessing(ctx context.Context, jobID string) error {
	sql, args, err := r.Builder.
		Update(jobsTable).
		Set(colStatus, entity.Processing).
		Where(squirrel.And{
			squirrel.Eq{colJobID: jobID},
			squirrel.Eq{colStatus: string(entity.Submitted)},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - MarkProcessing - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - MarkProcessing - executor.Exec: %w", errs.ErrMetadataUnavailable)
	}

	return nil
}

func (r *JobMetadataRepo) UpdateOnCompletion(
	ctx context.Context,
	jobID string,
	processedURL string,
	processedSize int64,
	faceMeta entity.FaceMeta,
	duration float64,
) error {
	faceData, err := json.Marshal(faceMeta)
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - UpdateOnCompletion - json.Marshal: %w", err)
	}

	now := time.Now()

	sql, args, err := r.Builder.
		Update(jobsTable).
		Set(colBlobProcessedURL, processedURL).
		Set(colFileSizeProcessed, processedSize).
		Set(colIsFaceDetected, faceMeta.FaceCount > 0).
		Set(colIsFaceBlurred, faceMeta.FaceCount > 0).
		Set(colFaceData, faceData).
		Set(colProcessingTime, duration).
		Set(colStatus, entity.Completed).
		Set(colProcessedAt, now).
		Where(squirrel.And{
			squirrel.Eq{colJobID: jobID},
			squirrel.NotEq{colStatus: string(entity.Completed)},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - UpdateOnCompletion - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - UpdateOnCompletion - executor.Exec: %w", errs.ErrMetadataUnavailable)
	}

	// RowsAffected() == 0 here means the row was already completed - a
	// no-op re-delivery per spec §4.6, not an error.
	return nil
}

func (r *JobMetadataRepo) MarkFailed(ctx context.Context, jobID string, reasonKind string, duration float64) error {
	sql, args, err := r.Builder.
		Update(jobsTable).
		Set(colStatus, entity.Failed).
		Set(colFailureReason, reasonKind).
		Set(colProcessingTime, duration).
		Where(squirrel.And{
			squirrel.Eq{colJobID: jobID},
			squirrel.NotEq{colStatus: string(entity.Completed)},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - MarkFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("JobMetadataRepo - MarkFailed - executor.Exec: %w", errs.ErrMetadataUnavailable)
	}

	return nil
}

func (r *JobMetadataRepo) GetByJobID(ctx context.Context, jobID string) (*entity.Job, error) {
	sql, args, err := r.Builder.
		Select(
			colID, colJobID, colOriginalFilename, colContentType,
			colBlobOriginalURL, colBlobProcessedURL,
			colIsVehicleDetected, colIsFaceDetected, colIsFaceBlurred,
			colFileSizeOriginal, colFileSizeProcessed, colProcessingTime,
			colVehicleData, colFaceData, colFailureReason,
			colStatus, colCreatedAt, colProcessedAt,
		).
		From(jobsTable).
		Where(squirrel.Eq{colJobID: jobID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("JobMetadataRepo - GetByJobID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	job, err := scanJob(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("JobMetadataRepo - GetByJobID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("JobMetadataRepo - GetByJobID - scanJob: %w", errs.ErrMetadataUnavailable)
	}

	return job, nil
}

func (r *JobMetadataRepo) Query(ctx context.Context, filter entity.JobFilter, limit int) ([]*entity.Job, error) {
	builder := r.Builder.
		Select(
			colID, colJobID, colOriginalFilename, colContentType,
			colBlobOriginalURL, colBlobProcessedURL,
			colIsVehicleDetected, colIsFaceDetected, colIsFaceBlurred,
			colFileSizeOriginal, colFileSizeProcessed, colProcessingTime,
			colVehicleData, colFaceData, colFailureReason,
			colStatus, colCreatedAt, colProcessedAt,
		).
		From(jobsTable).
		OrderBy(colCreatedAt + " DESC").
		Limit(uint64(limit))

	if filter.IsVehicleDetected != nil {
		builder = builder.Where(squirrel.Eq{colIsVehicleDetected: *filter.IsVehicleDetected})
	}
	if filter.IsFaceDetected != nil {
		builder = builder.Where(squirrel.Eq{colIsFaceDetected: *filter.IsFaceDetected})
	}
	if filter.IsFaceBlurred != nil {
		builder = builder.Where(squirrel.Eq{colIsFaceBlurred: *filter.IsFaceBlurred})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("JobMetadataRepo - Query - builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("JobMetadataRepo - Query - executor.Query: %w", errs.ErrMetadataUnavailable)
	}
	defer rows.Close()

	jobs := make([]*entity.Job, 0, limit)
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, fmt.Errorf("JobMetadataRepo - Query - scanJobRows: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("JobMetadataRepo - Query - rows.Err: %w", err)
	}

	return jobs, nil
}

func (r *JobMetadataRepo) Aggregate(ctx context.Context) (*entity.Aggregate, error) {
	sql, args, err := r.Builder.
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE "+colIsVehicleDetected+")",
			"COUNT(*) FILTER (WHERE "+colIsFaceDetected+")",
			"COUNT(*) FILTER (WHERE "+colIsFaceBlurred+")",
			"COALESCE(AVG("+colProcessingTime+"), 0)",
		).
		From(jobsTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("JobMetadataRepo - Aggregate - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var agg entity.Aggregate
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&agg.Total, &agg.VehiclesDetected, &agg.FacesDetected, &agg.FacesBlurred, &agg.AvgProcessingSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("JobMetadataRepo - Aggregate - executor.QueryRow: %w", errs.ErrMetadataUnavailable)
	}

	return &agg, nil
}

// row is the minimal surface pgx.Row and pgx.Rows share.
type row interface {
	Scan(dest ...any) error
}

func scanJob(r row) (*entity.Job, error) {
	return scanJobRows(r)
}

func scanJobRows(r row) (*entity.Job, error) {
	var job entity.Job
	var idStr, jobIDStr uuid.UUID

	err := r.Scan(
		&idStr, &jobIDStr, &job.OriginalFilename, &job.ContentType,
		&job.BlobOriginalURL, &job.BlobProcessedURL,
		&job.IsVehicleDetected, &job.IsFaceDetected, &job.IsFaceBlurred,
		&job.FileSizeOriginal, &job.FileSizeProcessed, &job.ProcessingTimeSeconds,
		&job.VehicleDetectionData, &job.FaceDetectionData, &job.FailureReason,
		&job.Status, &job.CreatedAt, &job.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ID = idStr
	job.JobID = jobIDStr

	return &job, nil
}
