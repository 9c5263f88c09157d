package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docstore/internal/apperr"
	"docstore/internal/http/middleware"
	"docstore/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// CompletedSteps is set only for partial saga failures, telling the
	// caller which half of a multi-step operation committed.
	CompletedSteps []string `json:"completed_steps,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal details.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError translates the shared error taxonomy into HTTP
// responses. The contract with callers is that they always learn which
// consistency state they are in: a partial failure is never reported as
// a generic internal error.
func writeServiceError(c *fiber.Ctx, err error) error {
	var perr *apperr.PartialError
	if errors.As(err, &perr) {
		steps := make([]string, len(perr.Completed))
		for i, s := range perr.Completed {
			steps[i] = string(s)
		}
		res := errorPayload{
			RequestID: requestIDFromCtx(c),
			Error: errorEnvelope{
				Code:           "PARTIAL_FAILURE",
				Message:        "operation partially completed; retry is safe",
				CompletedSteps: steps,
			},
		}
		return c.Status(fiber.StatusInternalServerError).JSON(res)
	}

	var cerr *apperr.CompensationError
	if errors.As(err, &cerr) {
		return writeError(c, fiber.StatusInternalServerError, "COMPENSATION_FAILED",
			"operation failed and rollback did not complete; operator attention required")
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, apperr.ErrDuplicateKey):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_KEY", "external id already exists")
	case errors.Is(err, apperr.ErrBackendUnavailable):
		return writeError(c, fiber.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "backend unavailable")
	case errors.Is(err, service.ErrIDRequired),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrExternalIDRequired),
		errors.Is(err, service.ErrOwnerRequired),
		errors.Is(err, service.ErrContentNil),
		errors.Is(err, service.ErrBlockIDRequired),
		errors.Is(err, service.ErrInvalidPosition):
		return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
