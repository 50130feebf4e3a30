// Package sanitize is the single gate between client-supplied file names and the filesystem.
// Every read and every write under the upload root resolves its name through Resolve.
package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidName reports a name that can never identify a stored file: empty, ".", control
	// characters, too long or reserved for in-flight uploads.
	ErrInvalidName = errors.New("invalid file name")
	// ErrPathEscape reports a name that tries to leave the upload root.
	ErrPathEscape = errors.New("path escapes upload root")
)

// MaxNameLength is the longest accepted name in bytes, matching common filesystem limits.
const MaxNameLength = 255

// TempPrefix and TempSuffix frame the names of in-flight upload files.
// Names in that shape belong to the writer and are never accepted from clients.
const (
	TempPrefix = ".upload-"
	TempSuffix = ".tmp"
)

// IsReserved reports whether name is in the in-flight temp file namespace.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, TempPrefix) && strings.HasSuffix(name, TempSuffix)
}

// Path is an absolute path proven to live directly under an upload root.
// The zero value is invalid; values are only produced by Resolve and RootPath.
type Path struct {
	root string
	name string
}

// Root returns the cleaned absolute upload root.
func (p Path) Root() string { return p.root }

// Name returns the single-segment file name, or "" for the root itself.
func (p Path) Name() string { return p.name }

// String returns the absolute filesystem path.
func (p Path) String() string {
	if p.name == "" {
		return p.root
	}
	return filepath.Join(p.root, p.name)
}

// IsRoot reports whether p designates the upload root itself.
func (p Path) IsRoot() bool { return p.root != "" && p.name == "" }

// WithName returns a sibling path in the same root. The name is checked like any other.
func (p Path) WithName(name string) (Path, error) {
	return Resolve(p.root, name)
}

// CheckName validates a candidate name on its own, before it is ever joined to a root.
func CheckName(name string) error {
	switch name {
	case "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case ".":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case "..":
		return fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: separator in %q", ErrPathEscape, name)
	}
	// Any ".." is refused, not only a whole segment: "a..b" never reaches the filesystem.
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidName)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character in %q", ErrInvalidName, name)
		}
	}
	if filepath.VolumeName(name) != "" || filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	if IsReserved(name) {
		return fmt.Errorf("%w: reserved name %q", ErrInvalidName, name)
	}
	return nil
}

// RootPath cleans and absolutizes root and returns the Path designating it.
func RootPath(root string) (Path, error) {
	if strings.TrimSpace(root) == "" {
		return Path{}, fmt.Errorf("%w: empty upload root", ErrInvalidName)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Path{}, fmt.Errorf("resolve upload root: %w", err)
	}
	return Path{root: filepath.Clean(abs)}, nil
}

// Resolve turns candidate into a Path under root.
// The name is validated alone first; the joined result is then checked lexically
// so the root stays the direct parent.
func Resolve(root, candidate string) (Path, error) {
	if err := CheckName(candidate); err != nil {
		return Path{}, err
	}
	base, err := RootPath(root)
	if err != nil {
		return Path{}, err
	}

	joined := filepath.Join(base.root, candidate)
	rel, err := filepath.Rel(base.root, joined)
	if err != nil || rel != candidate || filepath.Dir(joined) != base.root {
		return Path{}, fmt.Errorf("%w: %q", ErrPathEscape, candidate)
	}
	return Path{root: base.root, name: candidate}, nil
}
