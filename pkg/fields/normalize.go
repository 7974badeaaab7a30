package fields

import (
	"fmt"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fieldcode"
	"github.com/goliatone/go-kintone-forms/pkg/unitpos"
)

// Mode selects add or update semantics.
type Mode int

const (
	// ModeAdd creates new fields: type and type-specific attributes are
	// required and codes are deduplicated against the snapshot.
	ModeAdd Mode = iota
	// ModeUpdate patches existing fields: every key must exist in the
	// snapshot and only the attributes present are checked.
	ModeUpdate
)

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithUnitClassifier overrides the unit-position classifier.
func WithUnitClassifier(classifier *unitpos.Classifier) NormalizerOption {
	return func(n *Normalizer) {
		if classifier != nil {
			n.units = classifier
		}
	}
}

// Normalizer validates and repairs property maps before submission. It holds
// no per-call state and is safe for concurrent use.
type Normalizer struct {
	units *unitpos.Classifier
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(options ...NormalizerOption) *Normalizer {
	n := &Normalizer{units: unitpos.Default()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(n)
	}
	return n
}

// Normalize prepares props for field addition. existing is the snapshot of
// fields already defined on the app (nil means none). The input is not
// modified. On a fatal error no result or warnings are returned.
func (n *Normalizer) Normalize(props, existing *Properties) (*Properties, diag.List, error) {
	return n.run(props, existing, ModeAdd)
}

// NormalizeUpdate prepares props for a field update. Keys must name fields in
// existing.
func (n *Normalizer) NormalizeUpdate(props, existing *Properties) (*Properties, diag.List, error) {
	return n.run(props, existing, ModeUpdate)
}

func (n *Normalizer) run(props, existing *Properties, mode Mode) (*Properties, diag.List, error) {
	if props == nil || props.Len() == 0 {
		return nil, nil, diag.Errorf(diag.CodeInvalidProperties, "properties", "at least one field is required")
	}
	scope := fieldcode.NewScope(existing.Codes()...)
	out, diags, err := n.normalizeSet(props, existing, scope, mode, "", false)
	if err != nil {
		return nil, nil, err
	}
	return out, diags, nil
}

// normalizeSet runs the per-field pipeline over one scope. Nested sets are
// subtable field maps; there, keys missing from existing are additions even
// in update mode.
func (n *Normalizer) normalizeSet(props, existing *Properties, scope *fieldcode.Scope, mode Mode, base string, nested bool) (*Properties, diag.List, error) {
	var diags diag.List
	out := NewProperties()

	for _, key := range props.Keys() {
		raw, _ := props.Get(key)
		def := raw.Clone()
		path := diag.JoinPath(base, key)

		fieldMode := mode
		prior, known := existing.Get(key)
		if nested && mode == ModeUpdate && !known {
			fieldMode = ModeAdd
		}
		if fieldMode == ModeUpdate && !known {
			return nil, nil, diag.Errorf(diag.CodeUnknownField, path, "field %q does not exist on the app", key)
		}

		typ, err := resolveType(def, prior, fieldMode, path, nested)
		if err != nil {
			return nil, nil, err
		}

		var outKey string
		if fieldMode == ModeAdd {
			outKey, err = n.assignCode(key, def, scope, path, &diags)
		} else {
			outKey, err = n.renameExisting(key, def, scope, path, &diags)
		}
		if err != nil {
			return nil, nil, err
		}
		if out.Has(outKey) {
			return nil, nil, diag.Errorf(diag.CodeInvalidProperties, path, "field %q is defined twice", outKey)
		}

		fc := &fieldContext{
			normalizer: n,
			typ:        typ,
			path:       diag.JoinPath(base, outKey),
			partial:    fieldMode == ModeUpdate,
			prior:      prior,
			diags:      &diags,
		}
		if err := variantFor(kindOf(typ, def)).normalize(fc, def); err != nil {
			return nil, nil, err
		}
		out.Set(outKey, def)
	}

	return out, diags, nil
}

func resolveType(def, prior *Definition, mode Mode, path string, nested bool) (Type, error) {
	typ := def.Type
	if typ == "" && mode == ModeUpdate && prior != nil {
		typ = prior.Type
	}
	if typ == "" {
		if nested {
			return "", diag.Errorf(diag.CodeMissingFieldType, path, "subtable fields must declare a type")
		}
		return "", diag.Errorf(diag.CodeMissingFieldType, path, "type is required")
	}
	if !typ.Known() {
		return "", diag.Errorf(diag.CodeUnknownFieldType, path, "unknown field type %q", typ)
	}
	if nested && !typ.AllowedInSubtable() {
		return "", diag.Errorf(diag.CodeIllegalSubtableField, path, "%s fields cannot be placed inside a subtable", typ)
	}
	return typ, nil
}

// assignCode resolves a new field's code, re-keys it when the code differs
// from the map key, and fills a missing label from the original key.
func (n *Normalizer) assignCode(key string, def *Definition, scope *fieldcode.Scope, path string, diags *diag.List) (string, error) {
	res, err := scope.Resolve(fieldcode.Candidate{Key: key, Code: def.Code, Label: def.Label}, path)
	if err != nil {
		return "", err
	}
	def.Code = res.Code

	if res.Code == key {
		if def.Label == "" {
			def.Label = key
			diags.Warn(diag.CodeLabelDefaulted, path, "label missing, set to %q", key)
		}
		return key, nil
	}

	message := fmt.Sprintf("field %q stored under code %q", key, res.Code)
	switch {
	case res.Deduplicated:
		message += fmt.Sprintf(" because %q is already in use", res.Base)
	case res.Source == fieldcode.SourceLabel:
		message += " derived from its label"
	case res.Source == fieldcode.SourceExplicit:
		message += " from its code attribute"
	}
	if def.Label == "" {
		def.Label = key
		message += fmt.Sprintf("; label set to %q", key)
	}
	diags.Warn(diag.CodeFieldCodeRenamed, path, "%s", message)
	return res.Code, nil
}

// renameExisting handles a code attribute on an update. The field stays keyed
// by its current code; a requested new code is validated and deduplicated.
func (n *Normalizer) renameExisting(key string, def *Definition, scope *fieldcode.Scope, path string, diags *diag.List) (string, error) {
	if def.Code == "" || def.Code == key {
		def.Code = ""
		return key, nil
	}
	res, err := scope.Resolve(fieldcode.Candidate{Key: key, Code: def.Code}, path)
	if err != nil {
		return "", err
	}
	if res.Deduplicated {
		diags.Warn(diag.CodeFieldCodeRenamed, path, "new code %q is already in use, renaming to %q instead", res.Base, res.Code)
	}
	def.Code = res.Code
	return key, nil
}
