package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried in the error envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
)

// APIError is a handler failure with a stable code clients can branch on.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationError reports malformed, missing or out-of-range input.
func ValidationError(message string, details map[string]interface{}) *APIError {
	return &APIError{Status: fiber.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

// FieldValidationError is a ValidationError naming the offending field.
func FieldValidationError(field, message string) *APIError {
	return ValidationError(message, map[string]interface{}{"field": field})
}

// NotFoundError reports a missing resource, e.g. NotFoundError("agent").
func NotFoundError(resource string) *APIError {
	return &APIError{Status: fiber.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

// ConflictError reports a uniqueness violation.
func ConflictError(message string, details map[string]interface{}) *APIError {
	return &APIError{Status: fiber.StatusConflict, Code: CodeConflict, Message: message, Details: details}
}

// UnauthorizedError is reserved for authenticated routes.
func UnauthorizedError(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return &APIError{Status: fiber.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func newPagination(page, pageSize int, total int64) *Pagination {
	var pages int64
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return &Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

type responseMeta struct {
	Timestamp  time.Time   `json:"timestamp"`
	RequestID  string      `json:"requestId"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type successEnvelope struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data"`
	Meta    responseMeta `json:"meta"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool         `json:"success"`
	Error   errorBody    `json:"error"`
	Meta    responseMeta `json:"meta"`
}

func newMeta(c *fiber.Ctx) responseMeta {
	id, _ := c.Locals("requestid").(string)
	return responseMeta{Timestamp: time.Now().UTC(), RequestID: id}
}

// ok writes a 200 success envelope.
func ok(c *fiber.Ctx, data interface{}) error {
	return respond(c, fiber.StatusOK, data)
}

// created writes a 201 success envelope.
func created(c *fiber.Ctx, data interface{}) error {
	return respond(c, fiber.StatusCreated, data)
}

func respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(successEnvelope{Success: true, Data: data, Meta: newMeta(c)})
}

// paged writes a success envelope with pagination metadata.
func paged(c *fiber.Ctx, data interface{}, p *Pagination) error {
	meta := newMeta(c)
	meta.Pagination = p
	return c.Status(fiber.StatusOK).JSON(successEnvelope{Success: true, Data: data, Meta: meta})
}
