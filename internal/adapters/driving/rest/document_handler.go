package rest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

type documentHandler struct {
	dispatcher driving.EventDispatcher
	documents  driving.DocumentService
	history    driving.HistoryService
	uploadDir  string
}

// handleUpload accepts a multipart file, stores it, and submits an upload
// event. The response carries the receipt plus the assigned document id.
func (h *documentHandler) handleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errBadRequest("missing file field")
	}

	uploadDir := h.uploadDir
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	if err := os.MkdirAll(uploadDir, 0700); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	// Prefix with a fresh id so concurrent uploads of the same filename
	// cannot clobber each other.
	path := filepath.Join(uploadDir, uuid.NewString()+"_"+filepath.Base(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, path); err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}

	payload := &domain.UploadPayload{
		Filename: fileHeader.Filename,
		FilePath: path,
		DocType:  c.FormValue("doc_type"),
	}
	if raw := c.FormValue("due_at"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			os.Remove(path)
			return domain.NewValidationError(map[string]string{"due_at": "must be an RFC 3339 timestamp"})
		}
		payload.DueAt = &due
	}

	receipt, err := h.dispatcher.Submit(c.Context(), &domain.Event{
		Type:    domain.EventDocumentUpload,
		Payload: payload,
	})
	if err != nil {
		os.Remove(path)
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"receipt":     receipt,
		"document_id": payload.DocumentID,
	})
}

func (h *documentHandler) handleList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	docs, err := h.documents.List(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"documents": docs, "count": len(docs)})
}

func (h *documentHandler) handleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errInvalidID()
	}

	doc, err := h.documents.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *documentHandler) handleChunks(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errInvalidID()
	}
	limit := c.QueryInt("limit", 0)
	preview := c.QueryBool("preview", true)

	chunks, err := h.documents.Chunks(c.Context(), id, limit, preview)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"chunks": chunks, "count": len(chunks)})
}

func (h *documentHandler) handleSummary(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errInvalidID()
	}

	summary, err := h.documents.Summary(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (h *documentHandler) handleClassifications(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errInvalidID()
	}
	limit := c.QueryInt("limit", 0)

	records, err := h.history.Classifications(c.Context(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"classifications": records, "count": len(records)})
}
