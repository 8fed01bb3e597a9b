package v1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/piyushgit011/image-process/internal/usecase"
	"github.com/piyushgit011/image-process/pkg/logger"
)

func NewJobRoutes(apiV1Group fiber.Router, jobs usecase.JobUseCase, stats usecase.StatsUseCase, l logger.Interface) {
	r := &V1{jobs: jobs, stats: stats, logger: l}

	{
		apiV1Group.Post("/jobs", r.submitJob)
		apiV1Group.Post("/jobs/batch", r.batchSubmitJobs)
		apiV1Group.Get("/jobs/:job_id", r.getJobStatus)
		apiV1Group.Get("/jobs", r.queryJobs)
		apiV1Group.Get("/stats", r.getStats)
		apiV1Group.Get("/queue", r.getQueue)
	}
}

func NewHealthRoute(app fiber.Router, jobs usecase.JobUseCase, stats usecase.StatsUseCase, l logger.Interface) {
	r := &V1{jobs: jobs, stats: stats, logger: l}
	app.Get("/healthz", r.healthz)
}
