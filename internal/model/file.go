package model

import (
	"io"
	"net/http"
	"time"

	"fileingest/internal/disposition"
)

// StoredFile describes a file persisted under the upload root.
// Path is the absolute location on disk and is never sent to clients.
type StoredFile struct {
	Name        string            `json:"filename"`
	Path        string            `json:"-"`
	Size        int64             `json:"size"`
	ModifiedAt  time.Time         `json:"modified_at"`
	Disposition *disposition.Kind `json:"disposition,omitempty"`
}

// UploadRequest is what the HTTP layer hands to the upload service for one request.
// Body is read once, in order, and must not be used after the call returns.
type UploadRequest struct {
	ContentType string
	Header      http.Header
	Body        io.Reader
}
