package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"fileingest/internal/disposition"
	"fileingest/internal/formdata"
	"fileingest/internal/http/middleware"
	"fileingest/internal/sanitize"
	"fileingest/internal/service"
	"fileingest/internal/storage"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "PATH_ESCAPE", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
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

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is checked in order. Traversal comes first so it is never
// reported as a plain bad request; framing errors come before anything
// storage-related because a truncated body carries both.
var errorMappings = []errorMapping{
	{sanitize.ErrPathEscape, fiber.StatusForbidden, "PATH_ESCAPE", "file name escapes the upload directory"},
	{sanitize.ErrInvalidName, fiber.StatusBadRequest, "INVALID_NAME", "invalid file name"},
	{service.ErrReaderNil, fiber.StatusBadRequest, "BODY_REQUIRED", "request body is required"},
	{service.ErrMissingHeader, fiber.StatusBadRequest, "MISSING_HEADER", "Content-Disposition header is required"},
	{disposition.ErrMalformedHeader, fiber.StatusBadRequest, "MALFORMED_HEADER", "malformed Content-Disposition header"},
	{service.ErrMissingFilename, fiber.StatusBadRequest, "FILENAME_REQUIRED", "filename is required"},
	{service.ErrNoFilePart, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required"},
	{formdata.ErrMissingBoundary, fiber.StatusBadRequest, "MISSING_BOUNDARY", "multipart boundary is missing"},
	{formdata.ErrMalformedBody, fiber.StatusBadRequest, "MALFORMED_BODY", "malformed multipart body"},
	{storage.ErrSizeExceeded, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "upload exceeds the size limit"},
	{storage.ErrConflict, fiber.StatusConflict, "CONFLICT", "file already exists"},
	{storage.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "file not found"},
}

// mapError translates a service error into status, code and a client-safe message.
func mapError(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.message
		}
	}
	return fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}

func writeServiceError(c *fiber.Ctx, err error) error {
	status, code, message := mapError(err)
	return writeError(c, status, code, message)
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
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "upload exceeds the size limit")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
