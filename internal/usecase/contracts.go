package usecase

import (
	"context"

	"github.com/piyushgit011/image-process/internal/dto"
	"github.com/piyushgit011/image-process/internal/entity"
)

type (
	// ModelManager is the centralized detection surface (spec §4.4): the
	// Admission Gate and the Worker both call through here, never
	// duplicating detection logic at their own call sites.
	ModelManager interface {
		DetectVehicles(ctx context.Context, data []byte) (bool, entity.VehicleDetection, error)
		DetectAndBlurFaces(ctx context.Context, data []byte) ([]byte, entity.FaceMeta, error)
	}

	// JobUseCase is the Admission Gate's public surface (spec §4.5),
	// consumed by the REST controllers.
	JobUseCase interface {
		Submit(ctx context.Context, req dto.SubmitRequest) (jobID string, accepted bool, reason string, err error)
		BatchSubmit(ctx context.Context, reqs []dto.SubmitRequest) (dto.BatchResult, error)
		GetStatus(ctx context.Context, jobID string) (dto.StatusPayload, error)
		Query(ctx context.Context, filter entity.JobFilter, limit int) ([]*entity.Job, error)
	}

	// StatsUseCase is the Stats Aggregator's read-only surface (spec §4.8).
	StatsUseCase interface {
		Snapshot(ctx context.Context) (dto.StatsSnapshot, error)
		QueueDepth(ctx context.Context) (int64, error)
		ActiveWorkers() int64
	}
)
