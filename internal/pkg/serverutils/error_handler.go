package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/pkg/logger"
)

// ErrorHandlerMiddleware maps service errors to HTTP statuses. Clients see
// the error kind and its detail text; internal causes stay in the logs.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var verr *ValidationError
		if errors.As(err, &verr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Message: "validation failed",
				Fields:  verr.Fields,
			})
		}

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return ctx.Status(ferr.Code).JSON(ErrorResponse{Message: ferr.Message})
		}

		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("http", "request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
			message := "internal server error"
			if status == fiber.StatusServiceUnavailable {
				message = "a backing service is temporarily unavailable, please retry"
			}
			return ctx.Status(status).JSON(ErrorResponse{Message: message})
		}

		log.Warn("http", "request rejected", map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": status,
			"error":  err.Error(),
		})
		return ctx.Status(status).JSON(ErrorResponse{Message: err.Error()})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateFile):
		return fiber.StatusConflict
	case errors.Is(err, apperr.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrUnsupportedFileType):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, apperr.ErrEmbeddingUnavailable), errors.Is(err, apperr.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
