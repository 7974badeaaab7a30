package fields

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
)

// Definition is one field of an app or subtable. Type, Code and Label are
// common to every variant; choice fields carry Options and subtables carry
// Fields. Attributes the engine does not interpret stay in Attrs in their
// original order and are submitted untouched.
type Definition struct {
	Type    Type
	Code    string
	Label   string
	Options *OptionSet
	Fields  *Properties
	Attrs   *ordered.Object
}

// ParseDefinition builds a Definition from a decoded JSON/YAML value.
func ParseDefinition(raw any, path string) (*Definition, error) {
	obj, ok := raw.(*ordered.Object)
	if !ok || obj == nil {
		return nil, diag.Errorf(diag.CodeInvalidProperties, path, "field definition must be an object")
	}

	def := &Definition{Attrs: ordered.NewObject()}
	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		switch key {
		case "type":
			str, ok := value.(string)
			if !ok {
				return nil, diag.Errorf(diag.CodeUnknownFieldType, path, "type must be a string")
			}
			def.Type = Type(strings.TrimSpace(str))
		case "code":
			str, ok := value.(string)
			if !ok {
				return nil, diag.Errorf(diag.CodeInvalidFieldCode, path, "code must be a string")
			}
			def.Code = strings.TrimSpace(str)
		case "label":
			str, ok := value.(string)
			if !ok {
				return nil, diag.Errorf(diag.CodeInvalidProperties, path, "label must be a string")
			}
			def.Label = str
		case "options":
			if optionsObj, ok := value.(*ordered.Object); ok {
				def.Options = parseOptionSet(optionsObj)
				continue
			}
			def.Attrs.Set(key, ordered.CloneValue(value))
		case "fields":
			if nested, ok := value.(*ordered.Object); ok {
				props, err := ParseProperties(nested, diag.JoinPath(path, "fields"))
				if err != nil {
					return nil, err
				}
				def.Fields = props
				continue
			}
			def.Attrs.Set(key, ordered.CloneValue(value))
		default:
			def.Attrs.Set(key, ordered.CloneValue(value))
		}
	}
	return def, nil
}

// Clone returns a deep copy.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := &Definition{
		Type:    d.Type,
		Code:    d.Code,
		Label:   d.Label,
		Options: d.Options.Clone(),
		Fields:  d.Fields.Clone(),
		Attrs:   d.Attrs.Clone(),
	}
	if out.Attrs == nil {
		out.Attrs = ordered.NewObject()
	}
	return out
}

// Attr returns a raw attribute value.
func (d *Definition) Attr(key string) (any, bool) {
	return d.Attrs.Get(key)
}

// StringAttr returns a string attribute, trimmed.
func (d *Definition) StringAttr(key string) (string, bool) {
	str, ok := d.Attrs.String(key)
	return strings.TrimSpace(str), ok
}

// MarshalJSON writes type, code, label, options, fields, then the remaining
// attributes in their original order.
func (d *Definition) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	if d.Type != "" {
		out.Set("type", string(d.Type))
	}
	if d.Code != "" {
		out.Set("code", d.Code)
	}
	if d.Label != "" {
		out.Set("label", d.Label)
	}
	if d.Options != nil {
		out.Set("options", d.Options)
	}
	if d.Fields != nil {
		out.Set("fields", d.Fields)
	}
	for _, key := range d.Attrs.Keys() {
		value, _ := d.Attrs.Get(key)
		out.Set(key, value)
	}
	return out.MarshalJSON()
}

// UnmarshalJSON decodes a single definition preserving attribute order.
func (d *Definition) UnmarshalJSON(data []byte) error {
	raw, err := ordered.Decode(bytes.TrimSpace(data))
	if err != nil {
		return err
	}
	parsed, err := ParseDefinition(raw, "")
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

var _ json.Marshaler = (*Definition)(nil)
