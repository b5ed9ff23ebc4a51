package api

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/metrics"
	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

// requestLogger returns a middleware that counts the statements a request
// issues, renders handler errors, logs each request and records it in m.
func requestLogger(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		ctx, queries := models.WithQueryCount(c.UserContext())
		c.SetUserContext(ctx)

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		duration := time.Since(start)
		c.Set("X-Query-Count", strconv.FormatInt(queries.Load(), 10))
		m.ObserveRequest(c.Method(), c.Route().Path, status, duration)
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"queries", queries.Load(),
			"request_id", c.Locals("requestid"),
		)
		return nil
	}
}

// globalErrorHandler renders every error as an error envelope.
// Internal errors (5xx) return a generic message to avoid leaking implementation details.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	apiErr := toAPIError(err)
	if apiErr.Status >= fiber.StatusInternalServerError {
		slog.Error("internal error", "error", err.Error(), "path", c.Path(), "request_id", c.Locals("requestid"))
	}
	return c.Status(apiErr.Status).JSON(errorEnvelope{
		Success: false,
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
		Meta: newMeta(c),
	})
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fieldErr *store.FieldError
	if errors.As(err, &fieldErr) {
		return FieldValidationError(fieldErr.Field, fieldErr.Error())
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ConflictError("resource already exists", nil)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return ValidationError("request violates a data constraint", nil)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			return &APIError{Status: fiberErr.Code, Code: CodeNotFound, Message: fiberErr.Message}
		case fiberErr.Code == fiber.StatusUnauthorized:
			return UnauthorizedError(fiberErr.Message)
		case fiberErr.Code < fiber.StatusInternalServerError:
			return &APIError{Status: fiberErr.Code, Code: CodeValidation, Message: fiberErr.Message}
		}
	}
	return &APIError{
		Status:  fiber.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "internal server error",
	}
}
