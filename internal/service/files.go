package service

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fileingest/internal/disposition"
	"fileingest/internal/formdata"
	"fileingest/internal/metrics"
	"fileingest/internal/model"
	"fileingest/internal/sanitize"
	"fileingest/internal/storage"
)

// Protocol is how a request carried its file.
type Protocol string

const (
	ProtocolRaw       Protocol = "raw"
	ProtocolMultipart Protocol = "multipart"
)

// DefaultFileField is the multipart field that carries the upload.
const DefaultFileField = "file"

// FileListResult is the service-level DTO for the listing endpoint.
type FileListResult struct {
	Items []model.StoredFile `json:"files"`
	Total int                `json:"total"`
}

// FileService defines the use cases behind the HTTP surface.
type FileService interface {
	// Upload stores exactly one file from a raw or multipart request.
	// Failures are returned as *UploadError.
	Upload(ctx context.Context, req model.UploadRequest) (*model.StoredFile, error)

	// List returns the stored files in name order.
	List(ctx context.Context) (*FileListResult, error)

	// Open resolves name through the sanitizer and opens the stored file.
	Open(ctx context.Context, name string) (io.ReadCloser, *model.StoredFile, error)

	// Ping reports whether the upload root is usable.
	Ping(ctx context.Context) error
}

// Options tune a FileService. Zero values are usable.
type Options struct {
	FileField string
	Metrics   *metrics.Uploads
	Logger    *zap.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type fileService struct {
	store   storage.Storage
	field   string
	metrics *metrics.Uploads
	log     *zap.Logger
	tracer  trace.Tracer
}

// NewFileService constructs a FileService over store.
func NewFileService(store storage.Storage, opt Options) FileService {
	field := opt.FileField
	if field == "" {
		field = DefaultFileField
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tp := opt.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &fileService{
		store:   store,
		field:   field,
		metrics: opt.Metrics,
		log:     log.Named("files"),
		tracer:  tp.Tracer("fileingest/internal/service"),
	}
}

// upload tracks one request through the state machine.
type upload struct {
	stage    Stage
	protocol Protocol
	filename string
}

// enter moves u to st and records the transition on the request span.
func (u *upload) enter(ctx context.Context, st Stage) {
	u.stage = st
	trace.SpanFromContext(ctx).AddEvent("upload." + st.String())
}

func (u *upload) fail(err error) error {
	return &UploadError{Stage: u.stage, Protocol: u.protocol, Err: err}
}

func (s *fileService) Upload(ctx context.Context, req model.UploadRequest) (*model.StoredFile, error) {
	ctx, span := s.tracer.Start(ctx, "files.Upload")
	defer span.End()

	u := &upload{stage: StageStart, protocol: ProtocolRaw}
	var (
		sf  *model.StoredFile
		err error
	)
	switch {
	case req.Body == nil:
		err = u.fail(ErrReaderNil)
	case formdata.IsFormData(req.ContentType):
		u.protocol = ProtocolMultipart
		sf, err = s.uploadMultipart(ctx, u, req)
	default:
		sf, err = s.uploadRaw(ctx, u, req)
	}

	span.SetAttributes(
		attribute.String("upload.protocol", string(u.protocol)),
		attribute.String("upload.stage", u.stage.String()),
		attribute.String("upload.filename", u.filename),
	)

	class := Classify(err)
	var size int64
	if sf != nil {
		size = sf.Size
		span.SetAttributes(attribute.Int64("upload.size", size))
	}
	s.metrics.Observe(string(u.protocol), class.String(), size)

	fields := []zap.Field{
		zap.String("protocol", string(u.protocol)),
		zap.String("stage", u.stage.String()),
		zap.String("filename", u.filename),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, class.String())
		s.logFailure(class, "upload_failed", err, fields...)
		return nil, err
	}
	s.log.Info("upload_stored", append(fields, zap.Int64("size", size), zap.String("stored_as", sf.Name))...)
	return sf, nil
}

func (s *fileService) uploadRaw(ctx context.Context, u *upload, req model.UploadRequest) (*model.StoredFile, error) {
	u.enter(ctx, StageProtocolDetected)

	value := req.Header.Get("Content-Disposition")
	if value == "" {
		return nil, u.fail(ErrMissingHeader)
	}
	d, err := disposition.Parse(value)
	if err != nil {
		return nil, u.fail(err)
	}
	if d.Filename == "" {
		return nil, u.fail(ErrMissingFilename)
	}
	u.filename = d.Filename
	u.enter(ctx, StageFilenameResolved)

	dst, err := s.store.Root().WithName(d.Filename)
	if err != nil {
		return nil, u.fail(err)
	}
	u.enter(ctx, StagePathSanitized)
	u.enter(ctx, StageStreaming)
	sf, err := s.store.Put(ctx, dst, req.Body)
	if err != nil {
		return nil, u.fail(err)
	}
	u.enter(ctx, StageCompleted)
	kind := d.Kind
	sf.Disposition = &kind
	return sf, nil
}

func (s *fileService) uploadMultipart(ctx context.Context, u *upload, req model.UploadRequest) (*model.StoredFile, error) {
	dec, err := formdata.NewDecoder(req.ContentType, req.Body)
	if err != nil {
		return nil, u.fail(err)
	}
	u.enter(ctx, StageProtocolDetected)

	var (
		part *formdata.Part
		d    disposition.Disposition
	)
	for {
		p, err := dec.NextPart()
		if err == io.EOF {
			return nil, u.fail(ErrNoFilePart)
		}
		if err != nil {
			return nil, u.fail(err)
		}
		if p.FormName() != s.field {
			s.skipPart(p)
			continue
		}
		// Only the selected part's filename is validated.
		d, err = p.Disposition()
		if err != nil {
			return nil, u.fail(err)
		}
		part = p
		break
	}

	if d.Filename == "" {
		return nil, u.fail(ErrMissingFilename)
	}
	u.filename = d.Filename
	u.enter(ctx, StageFilenameResolved)

	dst, err := s.store.Root().WithName(d.Filename)
	if err != nil {
		return nil, u.fail(err)
	}
	u.enter(ctx, StagePathSanitized)
	u.enter(ctx, StageStreaming)
	staged, err := s.store.Stage(ctx, dst, part)
	if err != nil {
		return nil, u.fail(err)
	}
	defer staged.Discard()

	// The rest of the body must reach its terminal boundary before the file is published.
	if err := dec.Drain(); err != nil {
		return nil, u.fail(err)
	}
	sf, err := staged.Commit()
	if err != nil {
		return nil, u.fail(err)
	}
	u.enter(ctx, StageCompleted)
	kind := d.Kind
	sf.Disposition = &kind
	return sf, nil
}

// skipPart records a part that is not the upload field. Its body is discarded
// by the next NextPart. A traversal attempt in an ignored part is still logged.
func (s *fileService) skipPart(p *formdata.Part) {
	_, err := p.Disposition()
	if errors.Is(err, sanitize.ErrPathEscape) {
		s.log.Warn("part_skipped", zap.String("field", p.FormName()), zap.Error(err), zap.Bool("security", true))
		return
	}
	s.log.Debug("part_skipped", zap.String("field", p.FormName()))
}

// List returns stored files without exposing storage types.
func (s *fileService) List(ctx context.Context) (*FileListResult, error) {
	files, err := s.store.List(ctx)
	if err != nil {
		s.logFailure(Classify(err), "list_failed", err)
		return nil, err
	}
	return &FileListResult{Items: files, Total: len(files)}, nil
}

func (s *fileService) Open(ctx context.Context, name string) (io.ReadCloser, *model.StoredFile, error) {
	p, err := s.store.Root().WithName(name)
	if err != nil {
		s.logFailure(Classify(err), "open_rejected", err, zap.String("filename", name))
		return nil, nil, err
	}
	rc, sf, err := s.store.Open(ctx, p)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logFailure(Classify(err), "open_failed", err, zap.String("filename", name))
		}
		return nil, nil, err
	}
	return rc, sf, nil
}

func (s *fileService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// logFailure logs traversal attempts at warn with security=true, storage faults
// at error and client mistakes at info.
func (s *fileService) logFailure(class Class, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("class", class.String()))
	switch class {
	case ClassSecurity:
		s.log.Warn(msg, append(fields, zap.Bool("security", true))...)
	case ClassStorage:
		s.log.Error(msg, fields...)
	default:
		s.log.Info(msg, fields...)
	}
}
