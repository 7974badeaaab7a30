package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
)

// Transformer rewrites submitted properties before they are normalized.
// Implementations receive a private copy and may mutate it freely.
type Transformer interface {
	Transform(ctx context.Context, props *fields.Properties) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, props *fields.Properties) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, props *fields.Properties) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, props)
}

// JSONPresetTransformer applies declarative defaults loaded from a JSON file.
// Type defaults fill attributes a field leaves unset; field patches overwrite
// labels and attributes of named fields. Subtable columns are addressed as
// "table.column":
//
//	{
//	  "defaults": {"NUMBER": {"digit": true}},
//	  "fields": {
//	    "title": {"label": "Title", "attrs": {"required": true}},
//	    "lines.qty": {"attrs": {"minValue": "0"}}
//	  }
//	}
type JSONPresetTransformer struct {
	defaults map[fields.Type]*ordered.Object
	patches  map[string]fieldPatch
}

type jsonPresetDocument struct {
	Defaults map[string]map[string]json.RawMessage `json:"defaults"`
	Fields   map[string]jsonFieldPatch             `json:"fields"`
}

type jsonFieldPatch struct {
	Label string                     `json:"label"`
	Attrs map[string]json.RawMessage `json:"attrs"`
}

type fieldPatch struct {
	label string
	attrs *ordered.Object
}

// NewJSONPresetTransformer constructs a transformer from raw JSON bytes.
func NewJSONPresetTransformer(data []byte) (*JSONPresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("json preset transformer: document is empty")
	}
	var document jsonPresetDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("json preset transformer: parse document: %w", err)
	}

	t := &JSONPresetTransformer{
		defaults: make(map[fields.Type]*ordered.Object, len(document.Defaults)),
		patches:  make(map[string]fieldPatch, len(document.Fields)),
	}
	for typ, attrs := range document.Defaults {
		obj, err := decodeAttrs(attrs)
		if err != nil {
			return nil, fmt.Errorf("json preset transformer: defaults %s: %w", typ, err)
		}
		t.defaults[fields.Type(strings.ToUpper(strings.TrimSpace(typ)))] = obj
	}
	for path, patch := range document.Fields {
		obj, err := decodeAttrs(patch.Attrs)
		if err != nil {
			return nil, fmt.Errorf("json preset transformer: field %s: %w", path, err)
		}
		t.patches[strings.TrimSpace(path)] = fieldPatch{label: patch.Label, attrs: obj}
	}
	return t, nil
}

// NewJSONPresetTransformerFromFS loads a JSON transformer document from the
// provided filesystem path.
func NewJSONPresetTransformerFromFS(fsys fs.FS, path string) (*JSONPresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("json preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("json preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("json preset transformer: read %s: %w", path, err)
	}
	return NewJSONPresetTransformer(data)
}

// Transform applies type defaults to every field, then the field patches.
// Patching a field that is not in props is an error.
func (t *JSONPresetTransformer) Transform(ctx context.Context, props *fields.Properties) error {
	if props == nil {
		return errors.New("json preset transformer: properties are nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.applyDefaults(props)

	paths := make([]string, 0, len(t.patches))
	for path := range t.patches {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		def := findField(props, path)
		if def == nil {
			return fmt.Errorf("json preset transformer: field %q not found", path)
		}
		applyFieldPatch(def, t.patches[path])
	}
	return nil
}

func (t *JSONPresetTransformer) applyDefaults(props *fields.Properties) {
	if len(t.defaults) == 0 {
		return
	}
	for _, key := range props.Keys() {
		def, _ := props.Get(key)
		if def == nil {
			continue
		}
		if defaults, ok := t.defaults[def.Type]; ok {
			if def.Attrs == nil {
				def.Attrs = ordered.NewObject()
			}
			for _, attr := range defaults.Keys() {
				if def.Attrs.Has(attr) {
					continue
				}
				value, _ := defaults.Get(attr)
				def.Attrs.Set(attr, ordered.CloneValue(value))
			}
		}
		if def.Fields != nil {
			t.applyDefaults(def.Fields)
		}
	}
}

func applyFieldPatch(def *fields.Definition, patch fieldPatch) {
	if patch.label != "" {
		def.Label = patch.label
	}
	if def.Attrs == nil {
		def.Attrs = ordered.NewObject()
	}
	for _, attr := range patch.attrs.Keys() {
		value, _ := patch.attrs.Get(attr)
		def.Attrs.Set(attr, ordered.CloneValue(value))
	}
}

func findField(props *fields.Properties, path string) *fields.Definition {
	if props == nil || path == "" {
		return nil
	}
	head, rest, nested := strings.Cut(path, ".")
	def, ok := props.Get(head)
	if !ok || def == nil {
		return nil
	}
	if !nested {
		return def
	}
	return findField(def.Fields, rest)
}

func decodeAttrs(attrs map[string]json.RawMessage) (*ordered.Object, error) {
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := ordered.NewObject()
	for _, key := range keys {
		switch key {
		case "type", "code", "label", "options", "fields":
			return nil, fmt.Errorf("attribute %q cannot be preset", key)
		}
		value, err := ordered.Decode(attrs[key])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		out.Set(key, value)
	}
	return out, nil
}
