package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// apiError is the JSON error envelope.
type apiError struct {
	Code    int               `json:"code"`
	Message string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e apiError) Error() string {
	return e.Message
}

func newError(code int, message string) apiError {
	return apiError{Code: code, Message: message}
}

func errBadRequest(message string) apiError {
	return newError(fiber.StatusBadRequest, message)
}

func errInvalidID() apiError {
	return newError(fiber.StatusBadRequest, "invalid id given")
}

// errorHandler maps domain errors to HTTP responses. Validation failures
// carry per-field detail; lifecycle conflicts surface the reason.
func errorHandler(c *fiber.Ctx, err error) error {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(apiError{
			Code:    fiber.StatusUnprocessableEntity,
			Message: "validation failed",
			Fields:  verr.Fields,
		})
	}

	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, domain.ErrNotFound):
		apiErr = newError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrLabelInUse):
		apiErr = newError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		apiErr = newError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnsupportedType):
		apiErr = newError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &fiberErr):
		apiErr = newError(fiberErr.Code, fiberErr.Message)
	default:
		apiErr = newError(fiber.StatusInternalServerError, "internal server error")
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}
