package handlers

import (
	"log/slog"

	"github.com/getpublora/publora/internal/service"
	"github.com/getpublora/publora/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

type ContentHandler struct {
	s service.ContentService
}

func NewContentHandler(s service.ContentService) *ContentHandler {
	return &ContentHandler{s: s}
}

func (h *ContentHandler) Create(c *fiber.Ctx) error {
	orgID := GetOrgID(c)

	var cc transfer.ContentItemCreation
	if err := c.BodyParser(&cc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	itemID, err := h.s.Create(c.Context(), orgID, &cc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":      itemID,
		"message": "Content item scheduled",
	})
}

func (h *ContentHandler) List(c *fiber.Ctx) error {
	orgID := GetOrgID(c)
	itemID := c.QueryInt("id", 0)

	if itemID != 0 {
		item, err := h.s.Info(c.Context(), orgID, int64(itemID))
		if err != nil {
			return c.Status(statusFromError(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusOK).JSON(item)
	}

	items, err := h.s.List(c.Context(), orgID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list content items",
		})
	}

	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *ContentHandler) Remove(c *fiber.Ctx) error {
	orgID := GetOrgID(c)
	itemID := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), orgID, int64(itemID))
	if err != nil {
		return c.Status(statusFromError(err)).JSON(fiber.Map{
			"error": "Unable to remove content item",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ContentHandler) UploadMedia(c *fiber.Ctx) error {
	orgID := GetOrgID(c)

	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files selected",
		})
	}

	urls, err := h.s.UploadMedia(c.Context(), orgID, files)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"media_urls": urls,
	})
}
