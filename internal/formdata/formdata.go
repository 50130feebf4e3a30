package formdata

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"fileingest/internal/disposition"
)

var (
	// ErrMissingBoundary is returned when the Content-Type carries no usable boundary parameter.
	ErrMissingBoundary = errors.New("multipart boundary missing")
	// ErrMalformedBody is returned for bodies that break the multipart framing,
	// including bodies that end before the terminal boundary.
	ErrMalformedBody = errors.New("malformed multipart body")
)

// MediaType is the media type routed to the decoder.
const MediaType = "multipart/form-data"

// IsFormData reports whether contentType declares multipart/form-data,
// ignoring case and parameters.
func IsFormData(contentType string) bool {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mt), MediaType)
}

// Decoder walks the parts of a multipart body in stream order.
// It is single-pass: NextPart discards whatever the previous part left unread.
type Decoder struct {
	mr  *multipart.Reader
	err error // sticky once the stream has ended or failed
}

// Part is one multipart section. Header keys are case-insensitive.
// Its body can be read once; reading past a truncated body yields ErrMalformedBody.
type Part struct {
	Header textproto.MIMEHeader
	part   *multipart.Part
}

// NewDecoder extracts the boundary from contentType and prepares to read body.
// Nothing is read from body until NextPart.
func NewDecoder(contentType string, body io.Reader) (*Decoder, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingBoundary, err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, ErrMissingBoundary
	}
	return &Decoder{mr: multipart.NewReader(body, boundary)}, nil
}

// NextPart advances to the next part. It returns io.EOF after the terminal
// boundary and ErrMalformedBody if the stream ends or breaks before it.
func (d *Decoder) NextPart() (*Part, error) {
	if d.err != nil {
		return nil, d.err
	}
	// multipart.Reader discards the unread rest of the previous part here.
	p, err := d.mr.NextRawPart()
	// Only a bare io.EOF marks the terminal boundary; a truncated stream comes back wrapped.
	if err == io.EOF {
		d.err = io.EOF
		return nil, io.EOF
	}
	if err != nil {
		d.err = fmt.Errorf("%w: %v", ErrMalformedBody, err)
		return nil, d.err
	}

	return &Part{Header: p.Header, part: p}, nil
}

// Drain consumes every remaining part up to the terminal boundary.
// It is how callers prove the body was complete.
func (d *Decoder) Drain() error {
	for {
		p, err := d.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := io.Copy(io.Discard, p); err != nil {
			return err
		}
	}
}

// Read reads the part body.
func (p *Part) Read(b []byte) (int, error) {
	n, err := p.part.Read(b)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return n, err
}

// Disposition parses the part's Content-Disposition header.
func (p *Part) Disposition() (disposition.Disposition, error) {
	v := p.Header.Get("Content-Disposition")
	if v == "" {
		return disposition.Disposition{}, fmt.Errorf("%w: part without Content-Disposition", ErrMalformedBody)
	}
	return disposition.Parse(v)
}

// FormName returns the `name` parameter of a form-data Content-Disposition, or
// "" when the header is absent or cannot be parsed. The filename is not checked,
// so callers can pick a field before validating it.
func (p *Part) FormName() string {
	return p.part.FormName()
}

// ContentType returns the declared Content-Type of the part, if any.
func (p *Part) ContentType() string {
	return p.Header.Get("Content-Type")
}
