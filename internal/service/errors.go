package service

import (
	"errors"
	"fmt"

	"fileingest/internal/disposition"
	"fileingest/internal/formdata"
	"fileingest/internal/sanitize"
	"fileingest/internal/storage"
)

var (
	ErrReaderNil       = errors.New("request body is nil")
	ErrMissingHeader   = errors.New("Content-Disposition header is required")
	ErrMissingFilename = errors.New("filename is required")
	ErrNoFilePart      = errors.New("no file part in multipart body")
)

// Class is the failure family an error belongs to.
type Class int

const (
	ClassNone Class = iota
	// ClassClient covers bad or oversized input. Not retried.
	ClassClient
	// ClassSecurity covers traversal attempts.
	ClassSecurity
	// ClassStorage covers disk and rename failures.
	ClassStorage
)

func (c Class) String() string {
	switch c {
	case ClassClient:
		return "client_error"
	case ClassSecurity:
		return "security"
	case ClassStorage:
		return "storage_error"
	default:
		return "ok"
	}
}

// Classify sorts err into a Class. Client framing errors are checked before
// ErrIO because a truncated multipart body surfaces as both.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, sanitize.ErrPathEscape):
		return ClassSecurity
	case errors.Is(err, ErrReaderNil),
		errors.Is(err, ErrMissingHeader),
		errors.Is(err, ErrMissingFilename),
		errors.Is(err, ErrNoFilePart),
		errors.Is(err, disposition.ErrMalformedHeader),
		errors.Is(err, formdata.ErrMissingBoundary),
		errors.Is(err, formdata.ErrMalformedBody),
		errors.Is(err, sanitize.ErrInvalidName),
		errors.Is(err, storage.ErrSizeExceeded),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, storage.ErrNotFound):
		return ClassClient
	default:
		return ClassStorage
	}
}

// Stage is a step of the upload state machine.
type Stage int

const (
	StageStart Stage = iota
	StageProtocolDetected
	StageFilenameResolved
	StagePathSanitized
	StageStreaming
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageProtocolDetected:
		return "protocol_detected"
	case StageFilenameResolved:
		return "filename_resolved"
	case StagePathSanitized:
		return "path_sanitized"
	case StageStreaming:
		return "streaming"
	case StageCompleted:
		return "completed"
	default:
		return "start"
	}
}

// UploadError is the Failed state: the stage that was reached and why it failed.
type UploadError struct {
	Stage    Stage
	Protocol Protocol
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
