// Package storage persists uploads under a single upload root on the local filesystem.
// Callers hand it sanitize.Path values only; raw names never reach this package.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fileingest/internal/model"
	"fileingest/internal/sanitize"
)

var (
	// ErrSizeExceeded is returned when a stream carries more bytes than the configured limit.
	ErrSizeExceeded = errors.New("upload exceeds size limit")
	// ErrIO wraps every read, write, sync or rename failure while persisting.
	ErrIO = errors.New("storage i/o failure")
	// ErrConflict is returned under CollisionReject when the destination already exists.
	ErrConflict = errors.New("file already exists")
	// ErrNotFound is returned when a requested file does not exist or is not a regular file.
	ErrNotFound = errors.New("file not found")
)

// CollisionPolicy decides what happens when an upload targets an existing name.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the existing file; the last rename wins.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionReject fails with ErrConflict.
	CollisionReject CollisionPolicy = "reject"
	// CollisionRename stores under the first free "name-N.ext".
	CollisionRename CollisionPolicy = "rename"
)

// ParseCollisionPolicy maps a configuration value to a policy.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CollisionOverwrite, CollisionReject, CollisionRename:
		return p, nil
	case "":
		return CollisionOverwrite, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q", s)
	}
}

// tempPattern names in-flight files. They sit beside their destination, are
// hidden from listings and can never be addressed through a sanitize.Path.
const tempPattern = sanitize.TempPrefix + "*" + sanitize.TempSuffix

func isTempName(name string) bool { return sanitize.IsReserved(name) }

// Storage is the filesystem-backed file store used by the service layer.
// Implementations are safe for concurrent use.
type Storage interface {
	// Put streams r to dst and finalizes it in one step.
	Put(ctx context.Context, dst sanitize.Path, r io.Reader) (*model.StoredFile, error)
	// Stage streams r to a temporary file beside dst. Nothing is visible at dst until Commit.
	Stage(ctx context.Context, dst sanitize.Path, r io.Reader) (*Staged, error)
	// Open opens a stored regular file for reading.
	Open(ctx context.Context, p sanitize.Path) (io.ReadCloser, *model.StoredFile, error)
	// List returns the stored files in name order.
	List(ctx context.Context) ([]model.StoredFile, error)
	// Ping checks that the upload root is a writable directory.
	Ping(ctx context.Context) error
	// Root returns the upload root.
	Root() sanitize.Path
}

// Options configure a disk store.
type Options struct {
	MaxSize   int64 // <= 0 disables the limit
	ChunkSize int   // <= 0 uses DefaultChunkSize
	Collision CollisionPolicy
}

type diskStorage struct {
	root   sanitize.Path
	writer *Writer
}

// NewDisk creates the upload root if needed and returns a Storage backed by it.
func NewDisk(root string, opt Options) (Storage, error) {
	rp, err := sanitize.RootPath(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(rp.String(), 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	policy := opt.Collision
	if policy == "" {
		policy = CollisionOverwrite
	}
	return &diskStorage{
		root:   rp,
		writer: NewWriter(opt.MaxSize, opt.ChunkSize, policy),
	}, nil
}

func (d *diskStorage) Root() sanitize.Path { return d.root }

func (d *diskStorage) Put(ctx context.Context, dst sanitize.Path, r io.Reader) (*model.StoredFile, error) {
	return d.writer.Persist(ctx, dst, r)
}

func (d *diskStorage) Stage(ctx context.Context, dst sanitize.Path, r io.Reader) (*Staged, error) {
	return d.writer.Stage(ctx, dst, r)
}

func (d *diskStorage) Open(ctx context.Context, p sanitize.Path) (io.ReadCloser, *model.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if p.IsRoot() {
		return nil, nil, ErrNotFound
	}
	fi, err := os.Lstat(p.String())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: stat: %w", ErrIO, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, nil, fmt.Errorf("%w: %q is a symlink", sanitize.ErrPathEscape, p.Name())
	}
	if !fi.Mode().IsRegular() {
		return nil, nil, ErrNotFound
	}

	f, err := os.Open(p.String())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: open: %w", ErrIO, err)
	}
	return f, storedFile(p, fi), nil
}

func (d *diskStorage) List(ctx context.Context) ([]model.StoredFile, error) {
	entries, err := os.ReadDir(d.root.String())
	if err != nil {
		return nil, fmt.Errorf("%w: read upload root: %w", ErrIO, err)
	}

	files := make([]model.StoredFile, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || isTempName(e.Name()) {
			continue
		}
		p, err := d.root.WithName(e.Name())
		if err != nil {
			// Names the sanitizer rejects can only come from outside this service.
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, *storedFile(p, fi))
	}
	return files, nil
}

func (d *diskStorage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(d.root.String())
	if err != nil {
		return fmt.Errorf("%w: stat upload root: %w", ErrIO, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: upload root is not a directory", ErrIO)
	}
	f, err := os.CreateTemp(d.root.String(), tempPattern)
	if err != nil {
		return fmt.Errorf("%w: upload root not writable: %w", ErrIO, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func storedFile(p sanitize.Path, fi os.FileInfo) *model.StoredFile {
	return &model.StoredFile{
		Name:       p.Name(),
		Path:       p.String(),
		Size:       fi.Size(),
		ModifiedAt: fi.ModTime().UTC(),
	}
}
