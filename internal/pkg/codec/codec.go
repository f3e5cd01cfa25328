// Package codec provides the encoders that turn a response envelope into
// bytes for each supported representation.
//
// The pipeline decides which envelope to send and in which format; a codec
// only produces the bytes:
//   - Request transformer → negotiated domain.Format
//   - Response transformer (early phase) → Registry.Lookup(format).Encode(env)
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// Codec encodes envelopes for one representation.
type Codec interface {
	// Name returns the format served by the codec.
	Name() domain.Format

	// ContentType returns the Content-Type header value.
	ContentType() string

	// Encode serializes the envelope.
	Encode(env *domain.Envelope) ([]byte, error)
}

// Registry maps formats to codecs. It is read-only after construction.
type Registry struct {
	codecs map[domain.Format]Codec
}

// NewRegistry creates a registry holding the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[domain.Format]Codec, len(codecs))}
	for _, c := range codecs {
		r.codecs[c.Name()] = c
	}
	return r
}

// Default returns a registry with the JSON, MessagePack and XML codecs.
func Default() *Registry {
	return NewRegistry(JSON{}, Msgpack{}, XML{})
}

// Lookup returns the codec for f.
func (r *Registry) Lookup(f domain.Format) (Codec, error) {
	c, ok := r.codecs[f]
	if !ok {
		return nil, fmt.Errorf("no codec registered for format %q", f)
	}
	return c, nil
}

// JSON encodes envelopes as JSON.
type JSON struct{}

// Name returns domain.FormatJSON.
func (JSON) Name() domain.Format { return domain.FormatJSON }

// ContentType returns "application/json".
func (JSON) ContentType() string { return "application/json" }

// Encode marshals the wire form of env.
func (JSON) Encode(env *domain.Envelope) ([]byte, error) {
	return json.Marshal(env.Wire())
}

// Msgpack encodes envelopes as MessagePack.
type Msgpack struct{}

// Name returns domain.FormatMsgpack.
func (Msgpack) Name() domain.Format { return domain.FormatMsgpack }

// ContentType returns "application/x-msgpack".
func (Msgpack) ContentType() string { return "application/x-msgpack" }

// Encode marshals the wire form of env with compact integers.
func (Msgpack) Encode(env *domain.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	// Struct payloads keep the field names clients see in JSON.
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(env.Wire()); err != nil {
		return nil, fmt.Errorf("encode msgpack: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize returns the envelope as generic maps and slices, in the shape
// the JSON codec produces. Numbers stay json.Number so integers keep every
// digit.
func normalize(env *domain.Envelope) (map[string]any, error) {
	raw, err := json.Marshal(env.Wire())
	if err != nil {
		return nil, fmt.Errorf("normalize envelope: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize envelope: %w", err)
	}
	return out, nil
}
