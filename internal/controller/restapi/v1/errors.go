package v1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/piyushgit011/image-process/internal/controller/restapi/v1/response"
)

func errorResponse(ctx *fiber.Ctx, code int, message string) error {
	return ctx.Status(code).JSON(response.Error{Message: message})
}
