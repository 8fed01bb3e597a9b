package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"github.com/piyushgit011/image-process/config"
	v1 "github.com/piyushgit011/image-process/internal/controller/restapi/v1"
	"github.com/piyushgit011/image-process/internal/usecase"
	"github.com/piyushgit011/image-process/pkg/logger"
)

// @title Vehicle-gated face-blur pipeline
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(app *fiber.App, cfg *config.Config, jobs usecase.JobUseCase, stats usecase.StatsUseCase, l logger.Interface) {
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	v1.NewHealthRoute(app, jobs, stats, l)

	apiV1Group := app.Group("/v1")
	{
		v1.NewJobRoutes(apiV1Group, jobs, stats, l)
	}
}
