package ordered

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Object is a JSON object that remembers the order its keys were first set.
// Values are one of: *Object, []any, string, json.Number, bool, or nil.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Len reports the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.values[key]
	return ok
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	value, ok := o.values[key]
	return value, ok
}

// String returns the value under key when it is a string.
func (o *Object) String(key string) (string, bool) {
	value, ok := o.Get(key)
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Object returns the value under key when it is a nested object.
func (o *Object) Object(key string) (*Object, bool) {
	value, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	obj, ok := value.(*Object)
	return obj, ok && obj != nil
}

// Set stores value under key, appending the key when it is new.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Delete removes key. Missing keys are ignored.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, exists := o.values[key]; !exists {
		return
	}
	delete(o.values, key)
	for idx, existing := range o.keys {
		if existing == key {
			o.keys = append(o.keys[:idx], o.keys[idx+1:]...)
			break
		}
	}
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]any, len(o.values)),
	}
	copy(out.keys, o.keys)
	for key, value := range o.values {
		out.values[key] = CloneValue(value)
	}
	return out
}

// CloneValue deep-copies any value produced by Decode.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case *Object:
		return typed.Clone()
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = CloneValue(item)
		}
		return out
	default:
		return typed
	}
}

// MarshalJSON writes keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, key := range o.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("ordered: marshal %q: %w", key, err)
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	value, err := Decode(data)
	if err != nil {
		return err
	}
	obj, ok := value.(*Object)
	if !ok {
		return errors.New("ordered: expected a JSON object")
	}
	*o = *obj
	return nil
}

// Decode parses a JSON document. Objects become *Object and numbers stay
// json.Number so integer-looking strings and numbers remain distinguishable.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("ordered: trailing data after JSON value")
	}
	return value, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch typed := tok.(type) {
	case json.Delim:
		switch typed {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("ordered: unexpected object key %v", keyTok)
				}
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			list := []any{}
			for dec.More() {
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("ordered: unexpected delimiter %v", typed)
		}
	default:
		return typed, nil
	}
}

// FromMap converts a plain map into an Object with lexically sorted keys,
// recursing into nested maps and slices.
func FromMap(src map[string]any) *Object {
	if src == nil {
		return nil
	}
	keys := make([]string, 0, len(src))
	for key := range src {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := NewObject()
	for _, key := range keys {
		out.Set(key, FromAny(src[key]))
	}
	return out
}

// FromAny normalises values decoded by encoding/json (or built by hand) into
// the shapes produced by Decode.
func FromAny(value any) any {
	switch typed := value.(type) {
	case *Object:
		return typed.Clone()
	case map[string]any:
		return FromMap(typed)
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = FromAny(item)
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = item
		}
		return out
	case float64:
		return json.Number(formatFloat(typed))
	case int:
		return json.Number(fmt.Sprintf("%d", typed))
	case int64:
		return json.Number(fmt.Sprintf("%d", typed))
	default:
		return typed
	}
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%g", value)
}
