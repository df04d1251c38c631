package handlers

import (
	"log/slog"

	"github.com/getpublora/publora/internal/service"
	"github.com/getpublora/publora/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

type PublishHandler struct {
	ds service.DispatchService
	ps service.PublishService
}

func NewPublishHandler(ds service.DispatchService, ps service.PublishService) *PublishHandler {
	return &PublishHandler{ds: ds, ps: ps}
}

// Check runs one dispatch round for the caller's organization. A discovery
// failure aborts the round and surfaces as a count of zero; the next poll
// retries naturally.
func (h *PublishHandler) Check(c *fiber.Ctx) error {
	orgID := GetOrgID(c)

	published, err := h.ds.RunPoll(c.Context(), orgID)
	if err != nil {
		slog.Info("poll round aborted", "org_id", orgID, "error", err.Error())
		published = 0
	}

	return c.Status(fiber.StatusOK).JSON(transfer.PollResponse{Published: published})
}

func (h *PublishHandler) Publish(c *fiber.Ctx) error {
	orgID := GetOrgID(c)

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}
	if req.ContentItemID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content_item_id is required",
		})
	}

	results, err := h.ds.ManualDispatch(c.Context(), orgID, &req)
	if err != nil {
		return c.Status(statusFromError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(transfer.PublishResponse{Results: results})
}

// History exposes the send ledger for one content item, so an operator can
// see which connections failed and decide on a manual retry.
func (h *PublishHandler) History(c *fiber.Ctx) error {
	orgID := GetOrgID(c)
	itemID := c.QueryInt("content_item_id", 0)

	if itemID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content_item_id is required",
		})
	}

	entries, err := h.ps.History(c.Context(), orgID, int64(itemID))
	if err != nil {
		return c.Status(statusFromError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(entries)
}
