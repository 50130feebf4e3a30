package sanitize

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Rejects(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name      string
		candidate string
		wantErr   error
	}{
		{name: "empty", candidate: "", wantErr: ErrInvalidName},
		{name: "dot", candidate: ".", wantErr: ErrInvalidName},
		{name: "dot dot", candidate: "..", wantErr: ErrPathEscape},
		{name: "unix traversal", candidate: "../../etc/passwd", wantErr: ErrPathEscape},
		{name: "windows traversal", candidate: `..\..\boot.ini`, wantErr: ErrPathEscape},
		{name: "nested", candidate: "a/b.txt", wantErr: ErrPathEscape},
		{name: "backslash", candidate: `a\b.txt`, wantErr: ErrPathEscape},
		{name: "absolute", candidate: "/etc/passwd", wantErr: ErrPathEscape},
		{name: "embedded dot dot", candidate: "a..b", wantErr: ErrPathEscape},
		{name: "trailing dot dot", candidate: "report..", wantErr: ErrPathEscape},
		{name: "nul byte", candidate: "a\x00b", wantErr: ErrInvalidName},
		{name: "newline", candidate: "a\nb", wantErr: ErrInvalidName},
		{name: "invalid utf8", candidate: "a\xffb", wantErr: ErrInvalidName},
		{name: "too long", candidate: strings.Repeat("x", MaxNameLength+1), wantErr: ErrInvalidName},
		{name: "temp file name", candidate: ".upload-1.tmp", wantErr: ErrInvalidName},
		{name: "bare temp frame", candidate: ".upload-.tmp", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Resolve(root, tt.candidate)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Path{}, p)
		})
	}
}

func TestResolve_ValidNames(t *testing.T) {
	root := t.TempDir()
	absRoot, err := filepath.Abs(root)
	require.NoError(t, err)

	names := []string{
		"a.txt",
		"report.pdf",
		".hidden",
		"with space.txt",
		"✓.txt",
		"no-extension",
		"a.b.c",
		".upload-notes.txt",
		"draft.tmp",
		strings.Repeat("x", MaxNameLength),
	}

	for _, n := range names {
		t.Run(n, func(t *testing.T) {
			p, err := Resolve(root, n)
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(absRoot), filepath.Dir(p.String()))
			assert.Equal(t, n, p.Name())
			assert.False(t, p.IsRoot())
		})
	}
}

func TestResolve_ResultNeverLeavesRoot(t *testing.T) {
	root := t.TempDir()
	candidates := []string{"..", "../x", "x/..", "./x", "x/../../y", `..\x`, "....", "x/./y", "/", `\`}

	for _, c := range candidates {
		p, err := Resolve(root, c)
		if err == nil {
			rel, relErr := filepath.Rel(p.Root(), p.String())
			require.NoError(t, relErr)
			assert.False(t, strings.HasPrefix(rel, ".."), "candidate %q escaped to %q", c, p.String())
		}
	}
}

func TestRootPath(t *testing.T) {
	root := t.TempDir()

	p, err := RootPath(root + string(filepath.Separator) + ".")
	require.NoError(t, err)
	assert.True(t, p.IsRoot())
	assert.Equal(t, filepath.Clean(root), p.String())

	_, err = RootPath("  ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestPath_WithName(t *testing.T) {
	root := t.TempDir()
	p, err := Resolve(root, "a.txt")
	require.NoError(t, err)

	sib, err := p.WithName("b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Root(), "b.txt"), sib.String())

	_, err = p.WithName("../b.txt")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(".upload-123.tmp"))
	assert.True(t, IsReserved(TempPrefix+"x"+TempSuffix))
	assert.False(t, IsReserved("upload-123.tmp"))
	assert.False(t, IsReserved(".upload-123.txt"))
	assert.False(t, IsReserved("a.tmp"))
}
