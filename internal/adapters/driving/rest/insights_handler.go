package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

type insightsHandler struct {
	insights driving.InsightsService
}

func (h *insightsHandler) handleDashboard(c *fiber.Ctx) error {
	dashboard, err := h.insights.Dashboard(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(dashboard)
}

type configHandler struct {
	settings driving.SettingsService
}

func (h *configHandler) handleGet(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

func (h *configHandler) handleUpdate(c *fiber.Ctx) error {
	var settings domain.Settings
	if err := c.BodyParser(&settings); err != nil {
		return errBadRequest("invalid JSON request")
	}

	updated, err := h.settings.Update(c.Context(), settings)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}
