package v1

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/piyushgit011/image-process/internal/controller/restapi/v1/response"
)

// @Summary  	Read-through processing statistics
// @Tags 		stats
// @Produce 	json
// @Success 	200 {object} dto.StatsSnapshot
// @Router 		/v1/stats [get]
func (r *V1) getStats(ctx *fiber.Ctx) error {
	snapshot, err := r.stats.Snapshot(ctx.UserContext())
	if err != nil {
		r.logger.Error(err, "restapi - v1 - getStats")
		return errorResponse(ctx, http.StatusInternalServerError, "stats unavailable")
	}

	return ctx.Status(http.StatusOK).JSON(snapshot)
}

// @Summary  	Queue depth and active worker count
// @Tags 		stats
// @Produce 	json
// @Success 	200 {object} response.Queue
// @Router 		/v1/queue [get]
func (r *V1) getQueue(ctx *fiber.Ctx) error {
	depth, err := r.stats.QueueDepth(ctx.UserContext())
	if err != nil {
		r.logger.Error(err, "restapi - v1 - getQueue")
		return errorResponse(ctx, http.StatusInternalServerError, "queue unavailable")
	}

	return ctx.Status(http.StatusOK).JSON(response.Queue{Depth: depth, ActiveWorkers: r.stats.ActiveWorkers()})
}

// @Summary  	Liveness probe
// @Tags 		health
// @Produce 	json
// @Success 	200 {object} response.Health
// @Router 		/healthz [get]
func (r *V1) healthz(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(response.Health{Status: "ok"})
}
