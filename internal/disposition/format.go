package disposition

import (
	"strings"
)

const attrChars = "!#$&+-.^_`|~"

// Format renders a header value for kind and filename. Non-ASCII names get an
// ASCII fallback in `filename` plus the exact name in `filename*`.
func Format(kind Kind, filename string) string {
	if filename == "" {
		return kind.String()
	}

	var b strings.Builder
	b.WriteString(kind.String())
	b.WriteString(`; filename="`)
	ascii := true
	for _, r := range filename {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r >= 0x7f:
			ascii = false
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')

	if !ascii {
		b.WriteString("; filename*=UTF-8''")
		b.WriteString(pctEncode(filename))
	}
	return b.String()
}

func pctEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || strings.IndexByte(attrChars, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}
