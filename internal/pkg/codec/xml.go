package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

// XML encodes envelopes as XML with a <response> root element. Envelope
// fields keep their fixed order; keys of nested objects are sorted.
type XML struct{}

// Name returns domain.FormatXML.
func (XML) Name() domain.Format { return domain.FormatXML }

// ContentType returns "application/xml".
func (XML) ContentType() string { return "application/xml" }

// Encode renders env as an XML document.
func (XML) Encode(env *domain.Envelope) ([]byte, error) {
	tree, err := normalize(env)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{Name: xml.Name{Local: "response"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	for _, key := range []string{"statusCode", "code", "message", "data", "errors"} {
		v, ok := tree[key]
		if !ok {
			continue
		}
		if key == "errors" {
			if err := encodeList(enc, key, "error", v); err != nil {
				return nil, err
			}
			continue
		}
		if err := encodeValue(enc, key, v); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(enc *xml.Encoder, name string, v any) error {
	start := element(name)

	switch val := v.(type) {
	case map[string]any:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeValue(enc, k, val[k]); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	case []any:
		return encodeList(enc, name, "item", val)
	case nil:
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "nil"}, Value: "true"})
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	default:
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(scalar(val))); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	}
}

func encodeList(enc *xml.Encoder, name, itemName string, v any) error {
	items, _ := v.([]any)
	start := element(name)
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, item := range items {
		if err := encodeValue(enc, itemName, item); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// element returns a start element for name, falling back to
// <entry key="..."> when name is not a valid XML name.
func element(name string) xml.StartElement {
	if validName(name) {
		return xml.StartElement{Name: xml.Name{Local: name}}
	}
	return xml.StartElement{
		Name: xml.Name{Local: "entry"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "key"}, Value: name}},
	}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
