package handlers

import (
	"errors"
	"strconv"

	"github.com/getpublora/publora/internal/service"
	"github.com/gofiber/fiber/v2"
)

func GetOrgID(c *fiber.Ctx) int64 {
	orgID, _ := strconv.Atoi(c.Locals("org_id").(string))
	return int64(orgID)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrRetryTargetNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrInvalidTargets):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
