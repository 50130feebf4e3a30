package disposition

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"fileingest/internal/sanitize"
)

// ErrMalformedHeader is returned when a Content-Disposition value does not follow
// `disposition-type *( ";" parameter )`.
var ErrMalformedHeader = errors.New("malformed Content-Disposition header")

// Kind classifies a Content-Disposition value.
type Kind int

const (
	Attachment Kind = iota
	Inline
	FormData
)

// String returns the lowercase disposition type as it appears on the wire.
func (k Kind) String() string {
	switch k {
	case Inline:
		return "inline"
	case FormData:
		return "form-data"
	default:
		return "attachment"
	}
}

// MarshalJSON renders the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Disposition is a parsed Content-Disposition header.
// Filename is empty when the header carries no usable filename; when set it has
// already passed sanitize.CheckName.
type Disposition struct {
	Kind     Kind
	Filename string
	// Params holds every other parameter, keyed by lowercase name. Extended
	// (`name*`) values are decoded and stored under the plain name.
	Params map[string]string
}

// Param returns a parameter value by case-insensitive name.
func (d Disposition) Param(name string) string {
	return d.Params[strings.ToLower(name)]
}

// Parse parses a Content-Disposition header value.
// Unknown disposition types degrade to Attachment. `filename*` wins over `filename`.
func Parse(value string) (Disposition, error) {
	p := &parser{s: value}

	typ := strings.TrimSpace(p.until(';'))
	if typ == "" {
		return Disposition{}, fmt.Errorf("%w: missing disposition type", ErrMalformedHeader)
	}
	if !isToken(typ) {
		return Disposition{}, fmt.Errorf("%w: invalid disposition type %q", ErrMalformedHeader, typ)
	}

	d := Disposition{Kind: kindOf(typ), Params: map[string]string{}}
	ext := map[string]string{}

	for {
		name, val, ok, err := p.param()
		if err != nil {
			return Disposition{}, err
		}
		if !ok {
			break
		}
		if strings.HasSuffix(name, "*") {
			base := strings.TrimSuffix(name, "*")
			if _, dup := ext[base]; dup {
				continue
			}
			decoded, err := decodeExtValue(val)
			if err != nil {
				return Disposition{}, fmt.Errorf("%w: %s*: %v", ErrMalformedHeader, base, err)
			}
			ext[base] = decoded
			continue
		}
		if _, dup := d.Params[name]; !dup {
			d.Params[name] = val
		}
	}

	for k, v := range ext {
		d.Params[k] = v
	}

	filename := d.Params["filename"]
	delete(d.Params, "filename")
	if filename != "" {
		if err := sanitize.CheckName(filename); err != nil {
			return Disposition{}, fmt.Errorf("filename: %w", err)
		}
		d.Filename = filename
	}
	return d, nil
}

func kindOf(typ string) Kind {
	switch strings.ToLower(typ) {
	case "inline":
		return Inline
	case "form-data":
		return FormData
	default:
		return Attachment
	}
}

type parser struct {
	s   string
	pos int
}

func (p *parser) until(stop byte) string {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != stop {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

// param reads the next `name=value` pair. ok is false once the input is exhausted.
// Empty segments (";;" or a trailing ";") are skipped.
func (p *parser) param() (name, value string, ok bool, err error) {
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return "", "", false, nil
		}
		if p.s[p.pos] != ';' {
			break
		}
		p.pos++
	}
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != '=' && p.s[p.pos] != ';' {
		p.pos++
	}
	name = strings.ToLower(strings.TrimSpace(p.s[start:p.pos]))
	if p.pos >= len(p.s) || p.s[p.pos] != '=' {
		return "", "", false, fmt.Errorf("%w: parameter %q has no value", ErrMalformedHeader, name)
	}
	if !isToken(strings.TrimSuffix(name, "*")) {
		return "", "", false, fmt.Errorf("%w: invalid parameter name %q", ErrMalformedHeader, name)
	}
	p.pos++ // '='
	p.skipSpace()

	if p.pos < len(p.s) && p.s[p.pos] == '"' {
		value, err = p.quoted()
		if err != nil {
			return "", "", false, err
		}
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] != ';' {
			return "", "", false, fmt.Errorf("%w: unexpected text after quoted %s", ErrMalformedHeader, name)
		}
		return name, value, true, nil
	}

	value = strings.TrimSpace(p.until(';'))
	if value == "" {
		return "", "", false, fmt.Errorf("%w: parameter %q has an empty value", ErrMalformedHeader, name)
	}
	if strings.ContainsRune(value, '"') {
		return "", "", false, fmt.Errorf("%w: stray quote in %s", ErrMalformedHeader, name)
	}
	return name, value, true, nil
}

// quoted reads a quoted-string starting at the opening quote, unescaping `\"` and `\\`.
func (p *parser) quoted() (string, error) {
	var b strings.Builder
	p.pos++ // opening quote
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.s):
			b.WriteByte(p.s[p.pos+1])
			p.pos += 2
		case c == '"':
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("%w: unterminated quoted string", ErrMalformedHeader)
}

// decodeExtValue decodes an RFC 5987 ext-value: charset'language'pct-encoded.
func decodeExtValue(v string) (string, error) {
	parts := strings.SplitN(v, "'", 3)
	if len(parts) != 3 {
		return "", errors.New("expected charset'language'value")
	}
	charset := strings.ToLower(strings.TrimSpace(parts[0]))
	if charset == "" {
		return "", errors.New("missing charset")
	}
	raw, err := url.PathUnescape(parts[2])
	if err != nil {
		return "", fmt.Errorf("percent-decoding: %w", err)
	}

	switch charset {
	case "utf-8", "utf8":
		if !utf8.ValidString(raw) {
			return "", errors.New("value is not valid UTF-8")
		}
		return raw, nil
	case "iso-8859-1", "latin1", "iso_8859-1":
		return charmap.ISO8859_1.NewDecoder().String(raw)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q", charset)
	}
	out, err := enc.NewDecoder().String(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	if !utf8.ValidString(out) || strings.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("value is not valid %s", charset)
	}
	return out, nil
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte(`()<>@,;:\"/[]?={}`, c) >= 0 {
			return false
		}
	}
	return true
}
