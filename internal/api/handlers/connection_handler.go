package handlers

import (
	"log/slog"
	"strconv"

	config "github.com/getpublora/publora/configs"
	"github.com/getpublora/publora/internal/service"
	"github.com/getpublora/publora/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type ConnectionHandler struct {
	s   service.ConnectionService
	cfg config.Config
}

func NewConnectionHandler(cfg config.Config, s service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{s: s, cfg: cfg}
}

// Connect redirects to the platform's consent screen. The state parameter
// carries the caller's session token so the callback can attribute the new
// connection without a cookie.
func (h *ConnectionHandler) Connect(c *fiber.Ctx) error {
	authURL := h.s.GetAuthURL(c.Context(), c.Params("platform"), c.Query("state"))
	if authURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported platform",
		})
	}

	return c.Redirect(authURL)
}

func (h *ConnectionHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	platformName := c.Params("platform")

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	orgID, err := strconv.ParseInt(claims.OrgID, 10, 64)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	err = h.s.HandleCallback(c.Context(), platformName, code, orgID)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to connect account",
		})
	}

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *ConnectionHandler) List(c *fiber.Ctx) error {
	orgID := GetOrgID(c)

	connections, err := h.s.List(c.Context(), orgID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list connections",
		})
	}

	return c.Status(fiber.StatusOK).JSON(connections)
}

func (h *ConnectionHandler) Remove(c *fiber.Ctx) error {
	orgID := GetOrgID(c)
	connectionID := c.QueryInt("id", 0)

	err := h.s.Deactivate(c.Context(), orgID, int64(connectionID))
	if err != nil {
		return c.Status(statusFromError(err)).JSON(fiber.Map{
			"error": "Unable to remove connection",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
