package rest

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

type eventHandler struct {
	dispatcher driving.EventDispatcher
	history    driving.HistoryService
}

// submitRequest is the generic event submission envelope. Clients may
// provide their own event id for idempotent retries.
type submitRequest struct {
	EventID uuid.UUID        `json:"event_id,omitempty"`
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

func (h *eventHandler) handleSubmit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return errBadRequest("invalid JSON request")
	}

	payload, err := domain.ParsePayload(req.Type, req.Payload)
	if err != nil {
		return err
	}

	receipt, err := h.dispatcher.Submit(c.Context(), &domain.Event{
		ID:      req.EventID,
		Type:    req.Type,
		Payload: payload,
	})
	if err != nil {
		return err
	}

	status := fiber.StatusAccepted
	if receipt.Duplicate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(receipt)
}

func (h *eventHandler) handleList(c *fiber.Ctx) error {
	eventType := domain.EventType(c.Query("type"))
	limit := c.QueryInt("limit", 50)

	events, err := h.history.Events(c.Context(), eventType, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"events": events, "count": len(events)})
}

func (h *eventHandler) handleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errInvalidID()
	}

	event, task, err := h.history.Event(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"event": event, "task": task})
}

func (h *eventHandler) handleAnswers(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	answers, err := h.history.QAAnswers(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"answers": answers, "count": len(answers)})
}

func (h *eventHandler) handleSearches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	searches, err := h.history.Searches(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"searches": searches, "count": len(searches)})
}
