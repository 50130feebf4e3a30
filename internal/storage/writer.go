package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"fileingest/internal/model"
	"fileingest/internal/sanitize"
)

// DefaultChunkSize is the read/write unit used when none is configured.
const DefaultChunkSize = 32 * 1024

// maxRenameAttempts bounds the "name-N.ext" search under CollisionRename.
const maxRenameAttempts = 1000

// Writer streams bytes to disk in fixed-size chunks and publishes them with a
// rename (or hard link) so readers never see a partial file at the final name.
type Writer struct {
	maxSize   int64
	chunkSize int
	policy    CollisionPolicy
	bufs      sync.Pool
}

// NewWriter returns a Writer. maxSize <= 0 disables the size limit.
func NewWriter(maxSize int64, chunkSize int, policy CollisionPolicy) *Writer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if policy == "" {
		policy = CollisionOverwrite
	}
	w := &Writer{maxSize: maxSize, chunkSize: chunkSize, policy: policy}
	w.bufs.New = func() any {
		b := make([]byte, w.chunkSize)
		return &b
	}
	return w
}

// Staged is a fully written temporary file waiting to be published.
// Exactly one of Commit or Discard should be called; calling Discard after
// Commit is a no-op, so `defer s.Discard()` is safe.
type Staged struct {
	tmp    string
	dst    sanitize.Path
	size   int64
	policy CollisionPolicy
	done   bool
}

// Size is the number of bytes written.
func (s *Staged) Size() int64 { return s.size }

// Persist stages r and commits it immediately.
func (w *Writer) Persist(ctx context.Context, dst sanitize.Path, r io.Reader) (*model.StoredFile, error) {
	s, err := w.Stage(ctx, dst, r)
	if err != nil {
		return nil, err
	}
	return s.Commit()
}

// Stage copies r into a temporary file in dst's directory.
// On any failure the temporary file is removed before returning.
func (w *Writer) Stage(ctx context.Context, dst sanitize.Path, r io.Reader) (*Staged, error) {
	if dst.IsRoot() || dst.Name() == "" {
		return nil, fmt.Errorf("%w: destination has no file name", sanitize.ErrInvalidName)
	}
	if w.policy == CollisionReject {
		// Checked up front so a doomed upload is refused before its body is read;
		// Commit re-checks atomically.
		if _, err := os.Lstat(dst.String()); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrConflict, dst.Name())
		}
	}

	f, err := os.CreateTemp(dst.Root(), tempPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	tmp := f.Name()
	fail := func(err error) (*Staged, error) {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, err
	}

	bp := w.bufs.Get().(*[]byte)
	defer w.bufs.Put(bp)
	buf := *bp

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("%w: %w", ErrIO, err))
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if w.maxSize > 0 && written+int64(n) > w.maxSize {
				return fail(fmt.Errorf("%w: more than %d bytes", ErrSizeExceeded, w.maxSize))
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("%w: write: %w", ErrIO, err))
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(fmt.Errorf("%w: read: %w", ErrIO, rerr))
		}
	}

	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("%w: sync: %w", ErrIO, err))
	}
	if err := f.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("%w: chmod: %w", ErrIO, err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: close: %w", ErrIO, err)
	}

	return &Staged{tmp: tmp, dst: dst, size: written, policy: w.policy}, nil
}

// Commit publishes the staged file according to the collision policy.
// The temporary file is gone afterwards whether Commit succeeds or not.
func (s *Staged) Commit() (*model.StoredFile, error) {
	if s.done {
		return nil, errors.New("staged upload already finalized")
	}
	s.done = true

	final, err := s.publish()
	if err != nil {
		_ = os.Remove(s.tmp)
		return nil, err
	}

	fi, err := os.Stat(final.String())
	if err != nil {
		return nil, fmt.Errorf("%w: stat published file: %w", ErrIO, err)
	}
	return storedFile(final, fi), nil
}

func (s *Staged) publish() (sanitize.Path, error) {
	switch s.policy {
	case CollisionReject:
		if err := linkNoClobber(s.tmp, s.dst); err != nil {
			return sanitize.Path{}, err
		}
		return s.dst, nil
	case CollisionRename:
		for i := 0; i <= maxRenameAttempts; i++ {
			cand := s.dst
			if i > 0 {
				var err error
				cand, err = s.dst.WithName(numbered(s.dst.Name(), i))
				if err != nil {
					return sanitize.Path{}, fmt.Errorf("%w: no free name for %s", ErrConflict, s.dst.Name())
				}
			}
			err := linkNoClobber(s.tmp, cand)
			if err == nil {
				return cand, nil
			}
			if !errors.Is(err, ErrConflict) {
				return sanitize.Path{}, err
			}
		}
		return sanitize.Path{}, fmt.Errorf("%w: no free name for %s", ErrConflict, s.dst.Name())
	default:
		if err := os.Rename(s.tmp, s.dst.String()); err != nil {
			return sanitize.Path{}, fmt.Errorf("%w: rename: %w", ErrIO, err)
		}
		return s.dst, nil
	}
}

// Discard removes the temporary file if it has not been committed.
func (s *Staged) Discard() {
	if s == nil || s.done {
		return
	}
	s.done = true
	_ = os.Remove(s.tmp)
}

// linkNoClobber publishes tmp at dst only if dst does not exist, then drops tmp.
func linkNoClobber(tmp string, dst sanitize.Path) error {
	if err := os.Link(tmp, dst.String()); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConflict, dst.Name())
		}
		return fmt.Errorf("%w: link: %w", ErrIO, err)
	}
	_ = os.Remove(tmp)
	return nil
}

// numbered turns "report.pdf" into "report-2.pdf" and ".env" into ".env-2".
func numbered(name string, n int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name + "-" + strconv.Itoa(n)
	}
	return stem + "-" + strconv.Itoa(n) + ext
}
