package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"crashcore/internal/apperr"
)

// writeErr translates an apperr.Kind to its HTTP status (spec §7) and
// writes the {"error": ...} envelope the teacher's handlers already use.
func writeErr(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	return c.Status(kind.HTTPStatus()).JSON(fiber.Map{
		"error": err.Error(),
		"code":  string(kind),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}
