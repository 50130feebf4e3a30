package disposition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileingest/internal/sanitize"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		wantKind     Kind
		wantFilename string
		wantParams   map[string]string
	}{
		{
			name:         "attachment with quoted filename",
			value:        `attachment; filename="a.txt"`,
			wantKind:     Attachment,
			wantFilename: "a.txt",
			wantParams:   map[string]string{},
		},
		{
			name:         "case-insensitive type and parameter",
			value:        `INLINE; FileName=report.pdf`,
			wantKind:     Inline,
			wantFilename: "report.pdf",
			wantParams:   map[string]string{},
		},
		{
			name:         "form-data with name",
			value:        `form-data; name="file"; filename="x.bin"`,
			wantKind:     FormData,
			wantFilename: "x.bin",
			wantParams:   map[string]string{"name": "file"},
		},
		{
			name:         "unknown type degrades to attachment",
			value:        `x-custom; filename="a.txt"`,
			wantKind:     Attachment,
			wantFilename: "a.txt",
			wantParams:   map[string]string{},
		},
		{
			name:         "no filename",
			value:        `attachment`,
			wantKind:     Attachment,
			wantFilename: "",
			wantParams:   map[string]string{},
		},
		{
			name:         "empty filename counts as absent",
			value:        `attachment; filename=""`,
			wantKind:     Attachment,
			wantFilename: "",
			wantParams:   map[string]string{},
		},
		{
			name:         "quoted escapes",
			value:        `attachment; filename="say \"hi\".txt"`,
			wantKind:     Attachment,
			wantFilename: `say "hi".txt`,
			wantParams:   map[string]string{},
		},
		{
			name:         "semicolon inside quotes",
			value:        `attachment; filename="a;b.txt"; size=10`,
			wantKind:     Attachment,
			wantFilename: "a;b.txt",
			wantParams:   map[string]string{"size": "10"},
		},
		{
			name:         "extended filename decodes utf-8",
			value:        `attachment; filename*=UTF-8''%E2%9C%93.txt`,
			wantKind:     Attachment,
			wantFilename: "✓.txt",
			wantParams:   map[string]string{},
		},
		{
			name:         "extended filename wins over plain",
			value:        `attachment; filename*=UTF-8''%E2%9C%93.txt; filename="fallback.txt"`,
			wantKind:     Attachment,
			wantFilename: "✓.txt",
			wantParams:   map[string]string{},
		},
		{
			name:         "extended filename latin1 with language",
			value:        `attachment; filename*=iso-8859-1'en'%E9t%E9.txt`,
			wantKind:     Attachment,
			wantFilename: "été.txt",
			wantParams:   map[string]string{},
		},
		{
			name:         "trailing semicolon tolerated",
			value:        `attachment; filename=a.txt;`,
			wantKind:     Attachment,
			wantFilename: "a.txt",
			wantParams:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.Equal(t, tt.wantFilename, d.Filename)
			assert.Equal(t, tt.wantParams, d.Params)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	values := map[string]string{
		"empty":                 "",
		"missing type":          `; filename="a.txt"`,
		"parameter as type":     `filename="a.txt"`,
		"parameter without =":   `attachment; filename`,
		"empty value":           `attachment; filename=`,
		"unterminated quote":    `attachment; filename="a.txt`,
		"text after quote":      `attachment; filename="a" b`,
		"bad percent escape":    `attachment; filename*=UTF-8''%ZZ.txt`,
		"invalid utf-8":         `attachment; filename*=UTF-8''%FF%FE.txt`,
		"ext value w/o charset": `attachment; filename*=''a.txt`,
		"ext value w/o quotes":  `attachment; filename*=a.txt`,
		"unknown charset":       `attachment; filename*=x-nope''a.txt`,
	}

	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(v)
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}
}

func TestParse_UnsafeFilename(t *testing.T) {
	_, err := Parse(`attachment; filename="../../etc/passwd"`)
	assert.ErrorIs(t, err, sanitize.ErrPathEscape)
	assert.NotErrorIs(t, err, ErrMalformedHeader)

	_, err = Parse(`attachment; filename*=UTF-8''..%2Fsecret`)
	assert.ErrorIs(t, err, sanitize.ErrPathEscape)

	_, err = Parse(`attachment; filename="C:\\Windows\\win.ini"`)
	assert.ErrorIs(t, err, sanitize.ErrPathEscape)
}

func TestKind_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]Kind{"k": FormData})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"form-data"}`, string(b))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "inline", Format(Inline, ""))
	assert.Equal(t, `attachment; filename="a.txt"`, Format(Attachment, "a.txt"))
	assert.Equal(t, `inline; filename="q\"d.txt"`, Format(Inline, `q"d.txt`))
	assert.Equal(t, `inline; filename="_.txt"; filename*=UTF-8''%E2%9C%93.txt`, Format(Inline, "✓.txt"))

	d, err := Parse(Format(Inline, "✓ v2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "✓ v2.txt", d.Filename)
}
