package fields

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
)

// Properties maps field codes to definitions, keeping insertion order so
// deduplication tie-breaks and diagnostics follow the caller's document order.
type Properties struct {
	keys []string
	defs map[string]*Definition
}

// NewProperties returns an empty property map.
func NewProperties() *Properties {
	return &Properties{defs: make(map[string]*Definition)}
}

// ParseProperties builds a property map from a decoded value. Plain Go maps
// are accepted and visited in lexical key order.
func ParseProperties(raw any, path string) (*Properties, error) {
	var obj *ordered.Object
	switch typed := raw.(type) {
	case *Properties:
		return typed.Clone(), nil
	case *ordered.Object:
		obj = typed
	case map[string]any:
		obj = ordered.FromMap(typed)
	case nil:
		return nil, diag.Errorf(diag.CodeInvalidProperties, path, "properties are required")
	default:
		return nil, diag.Errorf(diag.CodeInvalidProperties, path, "properties must be an object, got %s", describe(raw))
	}
	if obj == nil {
		return nil, diag.Errorf(diag.CodeInvalidProperties, path, "properties are required")
	}

	props := NewProperties()
	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		def, err := ParseDefinition(value, diag.JoinPath(path, key))
		if err != nil {
			return nil, err
		}
		props.Set(key, def)
	}
	return props, nil
}

// DecodeProperties parses JSON or YAML bytes into a property map.
func DecodeProperties(data []byte, source string) (*Properties, error) {
	raw, err := ordered.ParseDocument(data, source)
	if err != nil {
		return nil, err
	}
	return ParseProperties(raw, "")
}

// Len reports the number of fields.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the field keys in order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Get returns the definition stored under key.
func (p *Properties) Get(key string) (*Definition, bool) {
	if p == nil {
		return nil, false
	}
	def, ok := p.defs[key]
	return def, ok
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set stores def under key, appending new keys.
func (p *Properties) Set(key string, def *Definition) {
	if p.defs == nil {
		p.defs = make(map[string]*Definition)
	}
	if _, exists := p.defs[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.defs[key] = def
}

// Codes returns every key in order.
func (p *Properties) Codes() []string {
	return p.Keys()
}

// Clone returns a deep copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	out := NewProperties()
	for _, key := range p.keys {
		out.Set(key, p.defs[key].Clone())
	}
	return out
}

// MarshalJSON writes fields in order.
func (p *Properties) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, key := range p.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encoded, err := json.Marshal(p.defs[key])
		if err != nil {
			return nil, fmt.Errorf("fields: marshal %q: %w", key, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a property map preserving key order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	raw, err := ordered.Decode(data)
	if err != nil {
		return err
	}
	parsed, err := ParseProperties(raw, "")
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

func describe(value any) string {
	switch value.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	case *ordered.Object:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
