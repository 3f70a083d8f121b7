package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/chat"
	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/ingestion"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/scraper"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/circuitbreaker"
	"github.com/chatbot-admin/backend/pkg/logger"
)

func statusFor(err error) int {
	var extractErr *normalize.ExtractionError

	switch {
	case errors.Is(err, index.ErrNotFound),
		errors.Is(err, models.ErrBotNotFound),
		errors.Is(err, ingestion.ErrFileNotFound):
		return fiber.StatusNotFound

	case errors.Is(err, index.ErrInvalidStatus),
		errors.Is(err, index.ErrInvalidDocument),
		errors.Is(err, ingestion.ErrNoFileReference),
		errors.Is(err, ingestion.ErrFileTooLarge),
		errors.Is(err, scraper.ErrInvalidURL),
		errors.Is(err, chat.ErrNoMessages),
		errors.Is(err, chat.ErrInvalidMessage),
		errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, chat.ErrMissingBot):
		return fiber.StatusBadRequest

	case errors.Is(err, normalize.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType

	case errors.As(err, &extractErr), errors.Is(err, index.ErrEmptyContent):
		return fiber.StatusUnprocessableEntity

	case errors.Is(err, scraper.ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout

	case errors.Is(err, scraper.ErrFetchStatus), errors.Is(err, scraper.ErrFetchConnect):
		return fiber.StatusBadGateway

	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return fiber.StatusServiceUnavailable
	}

	return fiber.StatusInternalServerError
}

// respondError writes {"error": ...}. Server-side failures are logged and
// reported with the generic message instead of the cause.
func respondError(c *fiber.Ctx, err error, generic string) error {
	status := statusFor(err)

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		logger.Error(generic, zap.String("path", c.Path()), zap.Error(err))
		message = generic
	} else {
		logger.Warn(generic, zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
