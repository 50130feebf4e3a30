package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"fileingest/internal/disposition"
	"fileingest/internal/model"
	"fileingest/internal/service"
)

const (
	// healthTimeout bounds the readiness probe.
	healthTimeout = 2 * time.Second
	// maxDrainBytes caps how much of a rejected upload body is read and dropped.
	maxDrainBytes = 1 << 20
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate between HTTP and the file service.
func RegisterRoutes(app *fiber.App, svc service.FileService) {
	app.Get("/health", HealthCheck(svc))
	app.Get("/healthz", LivenessProbe())

	app.Post("/upload", UploadFile(svc))
	app.Get("/files/:name", DownloadFile(svc))
	app.Get("/uploads", ListUploads(svc))
}

// HealthCheck reports readiness: the upload root must be a writable directory.
//
//	@Summary	Readiness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	errorPayload
//	@Router		/health [get]
func HealthCheck(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "upload directory unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is up.
//
//	@Summary	Liveness probe
//	@Tags		health
//	@Success	200
//	@Router		/healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadFile stores one file sent either as the raw body with a
// Content-Disposition header or as the configured multipart/form-data field.
//
//	@Summary	Upload a file
//	@Tags		files
//	@Accept		application/octet-stream,multipart/form-data
//	@Produce	json
//	@Param		Content-Disposition	header		string	false	"attachment; filename=\"name\" (raw uploads)"
//	@Param		file				formData	file	false	"file part (multipart uploads)"
//	@Success	201					{object}	model.StoredFile
//	@Failure	400					{object}	errorPayload
//	@Failure	403					{object}	errorPayload
//	@Failure	409					{object}	errorPayload
//	@Failure	413					{object}	errorPayload
//	@Failure	500					{object}	errorPayload
//	@Router		/upload [post]
func UploadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := uploadRequest(c)
		sf, err := svc.Upload(c.UserContext(), req)
		if err != nil {
			discardBody(c, req.Body)
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sf)
	}
}

// uploadRequest exposes the request body as a stream. With StreamRequestBody
// enabled fasthttp hands out the connection reader; otherwise the body is
// already in memory.
func uploadRequest(c *fiber.Ctx) model.UploadRequest {
	var body io.Reader = c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}

	header := http.Header{}
	c.Request().Header.VisitAll(func(k, v []byte) {
		header.Add(string(k), string(v))
	})

	return model.UploadRequest{
		ContentType: string(c.Request().Header.ContentType()),
		Header:      header,
		Body:        body,
	}
}

// discardBody reads what a rejected upload left unread, up to maxDrainBytes,
// so the client gets to read the error response. A larger remainder closes the
// connection after the response instead.
func discardBody(c *fiber.Ctx, body io.Reader) {
	n, err := io.CopyN(io.Discard, body, maxDrainBytes)
	if err == nil && n == maxDrainBytes {
		c.Context().SetConnectionClose()
	}
}

// DownloadFile streams a stored file back with a content type inferred from
// its extension.
//
//	@Summary	Download a file
//	@Tags		files
//	@Produce	octet-stream
//	@Param		name	path	string	true	"stored file name"
//	@Success	200
//	@Failure	400	{object}	errorPayload
//	@Failure	403	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/files/{name} [get]
func DownloadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_NAME", "invalid file name")
		}

		rc, sf, err := svc.Open(c.UserContext(), name)
		if err != nil {
			return writeServiceError(c, err)
		}

		if ext := filepath.Ext(sf.Name); ext != "" {
			c.Type(ext)
		} else {
			c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		}
		c.Set(fiber.HeaderContentDisposition, disposition.Format(disposition.Inline, sf.Name))
		c.Set(fiber.HeaderLastModified, sf.ModifiedAt.UTC().Format(http.TimeFormat))
		// fasthttp closes rc once the body has been written.
		return c.Status(fiber.StatusOK).SendStream(rc, int(sf.Size))
	}
}

// listResponse is the listing body. Error is set when the upload directory
// could not be read; the request still succeeds.
type listResponse struct {
	Files []model.StoredFile `json:"files"`
	Total int                `json:"total"`
	Error string             `json:"error,omitempty"`
}

// ListUploads lists stored files. An unreadable upload directory yields an
// empty listing with an error note, never a failed request.
//
//	@Summary	List stored files
//	@Tags		files
//	@Produce	json
//	@Success	200	{object}	listResponse
//	@Router		/uploads [get]
func ListUploads(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.List(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusOK).JSON(listResponse{
				Files: []model.StoredFile{},
				Error: "upload directory unreadable",
			})
		}
		return c.Status(fiber.StatusOK).JSON(listResponse{Files: res.Items, Total: res.Total})
	}
}
