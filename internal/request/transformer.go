// Package request normalizes inbound requests before controller dispatch.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/munnerz/goautoneg"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/core/ports"
)

// FormatParameter is the query parameter that forces a response format.
const FormatParameter = "_format"

// DefaultMaxBodyBytes bounds the JSON body the transformer decodes.
const DefaultMaxBodyBytes = 10 << 20

// mediaTypes lists the content types accepted for each format. The first
// entry is the canonical one.
var mediaTypes = map[domain.Format][]string{
	domain.FormatJSON:    {"application/json", "text/json"},
	domain.FormatMsgpack: {"application/x-msgpack", "application/msgpack"},
	domain.FormatXML:     {"application/xml", "text/xml"},
}

// MediaType returns the canonical content type of f.
func MediaType(f domain.Format) string {
	if types, ok := mediaTypes[f]; ok {
		return types[0]
	}
	return "application/octet-stream"
}

// Options configures a Transformer.
type Options struct {
	// Formats lists the supported response formats in preference order.
	Formats []domain.Format
	// DefaultFormat is used when the client expresses no usable preference.
	DefaultFormat domain.Format
	// MaxBodyBytes bounds decoded JSON bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Transformer negotiates the response format and decodes JSON bodies.
// It holds only immutable configuration.
type Transformer struct {
	formats      []domain.Format
	alternatives []string
	byMediaType  map[string]domain.Format
	def          domain.Format
	maxBody      int64
}

// NewTransformer creates a Transformer.
func NewTransformer(opts Options) (*Transformer, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []domain.Format{domain.FormatJSON}
	}
	def := opts.DefaultFormat
	if def == "" {
		def = formats[0]
	}

	t := &Transformer{
		formats:     formats,
		byMediaType: make(map[string]domain.Format),
		def:         def,
		maxBody:     opts.MaxBodyBytes,
	}
	if t.maxBody <= 0 {
		t.maxBody = DefaultMaxBodyBytes
	}

	supported := false
	for _, f := range formats {
		types, ok := mediaTypes[f]
		if !ok {
			return nil, fmt.Errorf("unsupported format %q", f)
		}
		if f == def {
			supported = true
		}
		for _, mt := range types {
			t.alternatives = append(t.alternatives, mt)
			t.byMediaType[mt] = f
		}
	}
	if !supported {
		return nil, fmt.Errorf("default format %q is not in the supported formats", def)
	}

	return t, nil
}

// Transform implements ports.RequestTransformer.
func (t *Transformer) Transform(r *http.Request) (*http.Request, error) {
	if domain.IsTransformed(r) {
		return r, nil
	}

	r = domain.WithFormat(r, t.negotiate(r))

	body, err := t.decodeBody(r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r = domain.WithBody(r, body)
	}

	return domain.MarkTransformed(r), nil
}

// negotiate picks the response format: query parameter, then Accept header,
// then the default.
func (t *Transformer) negotiate(r *http.Request) domain.Format {
	if q := strings.ToLower(r.URL.Query().Get(FormatParameter)); q != "" {
		for _, f := range t.formats {
			if string(f) == q {
				return f
			}
		}
		return t.def
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		return t.def
	}
	// Wildcards resolve to the first alternative, so put the default first.
	alternatives := append([]string{MediaType(t.def)}, t.alternatives...)
	if mt := goautoneg.Negotiate(accept, alternatives); mt != "" {
		if f, ok := t.byMediaType[mt]; ok {
			return f
		}
	}
	return t.def
}

// decodeBody decodes JSON object bodies and restores r.Body so handlers can
// read it again.
func (t *Transformer) decodeBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mt != "application/json" && !strings.HasSuffix(mt, "+json")) {
		return nil, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	_ = r.Body.Close()
	if int64(len(raw)) > t.maxBody {
		return nil, &domain.HTTPError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Cause:      errors.New("request body too large"),
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &domain.HTTPError{
			StatusCode: http.StatusBadRequest,
			Cause:      fmt.Errorf("decode json body: %w", err),
		}
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

var _ ports.RequestTransformer = (*Transformer)(nil)
