package fields

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fieldcode"
)

// Kind is the normalization variant of a field. It follows Type except that
// any field carrying a lookup definition is a lookup.
type Kind int

const (
	KindPlain Kind = iota
	KindNumber
	KindCalc
	KindChoice
	KindLink
	KindLookup
	KindReferenceTable
	KindSubtable
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindCalc:
		return "calc"
	case KindChoice:
		return "choice"
	case KindLink:
		return "link"
	case KindLookup:
		return "lookup"
	case KindReferenceTable:
		return "reference-table"
	case KindSubtable:
		return "subtable"
	case KindSystem:
		return "system"
	default:
		return "plain"
	}
}

func kindOf(typ Type, def *Definition) Kind {
	if value, ok := def.Attr("lookup"); ok && value != nil {
		return KindLookup
	}
	switch {
	case typ == TypeNumber:
		return KindNumber
	case typ == TypeCalc:
		return KindCalc
	case typ.IsChoice():
		return KindChoice
	case typ == TypeLink:
		return KindLink
	case typ == TypeReferenceTable:
		return KindReferenceTable
	case typ == TypeSubtable:
		return KindSubtable
	case typ.IsSystem():
		return KindSystem
	default:
		return KindPlain
	}
}

// fieldContext carries the per-field state a variant needs.
type fieldContext struct {
	normalizer *Normalizer
	typ        Type
	path       string
	// partial is set for updates: only attributes present are checked.
	partial bool
	prior   *Definition
	diags   *diag.List
}

type variant interface {
	normalize(fc *fieldContext, def *Definition) error
}

func variantFor(kind Kind) variant {
	switch kind {
	case KindNumber:
		return numberVariant{}
	case KindCalc:
		return calcVariant{}
	case KindChoice:
		return choiceVariant{}
	case KindLink:
		return linkVariant{}
	case KindLookup:
		return lookupVariant{}
	case KindReferenceTable:
		return referenceTableVariant{}
	case KindSubtable:
		return subtableVariant{}
	case KindSystem, KindPlain:
		return plainVariant{}
	default:
		return plainVariant{}
	}
}

type plainVariant struct{}

func (plainVariant) normalize(*fieldContext, *Definition) error { return nil }

type numberVariant struct{}

func (numberVariant) normalize(fc *fieldContext, def *Definition) error {
	inferUnitPosition(fc, def)
	return nil
}

// inferUnitPosition fills unitPosition for fields that carry a unit without
// one.
func inferUnitPosition(fc *fieldContext, def *Definition) {
	unit, ok := def.Attrs.String("unit")
	if !ok || unit == "" {
		return
	}
	if def.Attrs.Has("unitPosition") {
		return
	}
	pos, reason := fc.normalizer.units.Explain(unit)
	def.Attrs.Set("unitPosition", string(pos))
	fc.diags.Warn(diag.CodeUnitPositionInferred, fc.path, "unitPosition set to %s for unit %q (%s)", pos, unit, reason)
}

type calcVariant struct{}

func (calcVariant) normalize(fc *fieldContext, def *Definition) error {
	raw, present := def.Attr("expression")
	if present || !fc.partial {
		expr, _ := raw.(string)
		if strings.TrimSpace(expr) == "" {
			return diag.Errorf(diag.CodeMissingExpression, fc.path, "calculated fields require a non-empty expression")
		}
	}
	format, _ := def.StringAttr("format")
	if format == "" && fc.partial && fc.prior != nil {
		format, _ = fc.prior.StringAttr("format")
	}
	if _, numeric := numericCalcFormats[format]; numeric {
		inferUnitPosition(fc, def)
	}
	return nil
}

type linkVariant struct{}

func (linkVariant) normalize(fc *fieldContext, def *Definition) error {
	raw, present := def.Attr("protocol")
	if !present && fc.partial {
		return nil
	}
	protocol, _ := raw.(string)
	if !contains(LinkProtocols, protocol) {
		return diag.Errorf(diag.CodeInvalidLinkProtocol, diag.JoinPath(fc.path, "protocol"),
			"protocol must be one of %s, got %q", strings.Join(LinkProtocols, ", "), protocol)
	}
	return nil
}

type choiceVariant struct{}

func (choiceVariant) normalize(fc *fieldContext, def *Definition) error {
	path := diag.JoinPath(fc.path, "options")
	if def.Options == nil {
		if raw, present := def.Attr("options"); present {
			return diag.Errorf(diag.CodeMissingOptions, path, "options must be an object keyed by option label, got %s", describe(raw))
		}
		if fc.partial {
			return nil
		}
		return diag.Errorf(diag.CodeMissingOptions, path, "%s fields require options", fc.typ)
	}

	normalized, renamed, diags, err := NormalizeOptions(def.Options, path)
	if err != nil {
		return err
	}
	fc.diags.Append(diags)
	def.Options = normalized
	remapDefaultValue(fc, def, renamed)
	return nil
}

// remapDefaultValue points defaultValue entries that named a rekeyed option at
// the option's new key.
func remapDefaultValue(fc *fieldContext, def *Definition, renamed map[string]string) {
	if len(renamed) == 0 {
		return
	}
	raw, ok := def.Attr("defaultValue")
	if !ok {
		return
	}
	path := diag.JoinPath(fc.path, "defaultValue")
	switch value := raw.(type) {
	case string:
		if target, hit := renamed[value]; hit {
			def.Attrs.Set("defaultValue", target)
			fc.diags.Warn(diag.CodeDefaultValueRemapped, path, "default %q now refers to option %q", value, target)
		}
	case []any:
		out := make([]any, len(value))
		for idx, item := range value {
			out[idx] = item
			str, isString := item.(string)
			if !isString {
				continue
			}
			if target, hit := renamed[str]; hit {
				out[idx] = target
				fc.diags.Warn(diag.CodeDefaultValueRemapped, path, "default %q now refers to option %q", str, target)
			}
		}
		def.Attrs.Set("defaultValue", out)
	}
}

type lookupVariant struct{}

func (lookupVariant) normalize(fc *fieldContext, def *Definition) error {
	raw, _ := def.Attr("lookup")
	path := diag.JoinPath(fc.path, "lookup")
	lookup, ok := raw.(*ordered.Object)
	if !ok {
		return diag.Errorf(diag.CodeInvalidLookup, path, "lookup must be an object, got %s", describe(raw))
	}
	if err := requireRelatedApp(lookup, path, diag.CodeInvalidLookup); err != nil {
		return err
	}
	if key, _ := lookup.String("relatedKeyField"); strings.TrimSpace(key) == "" {
		return diag.Errorf(diag.CodeInvalidLookup, diag.JoinPath(path, "relatedKeyField"), "relatedKeyField is required")
	}

	mappingsPath := diag.JoinPath(path, "fieldMappings")
	rawMappings, _ := lookup.Get("fieldMappings")
	mappings, ok := rawMappings.([]any)
	if !ok || len(mappings) == 0 {
		return diag.Errorf(diag.CodeInvalidLookup, mappingsPath, "at least one field mapping is required")
	}
	for idx, item := range mappings {
		itemPath := diag.JoinPath(mappingsPath, indexSegment(idx))
		mapping, ok := item.(*ordered.Object)
		if !ok {
			return diag.Errorf(diag.CodeInvalidLookup, itemPath, "field mapping must be an object")
		}
		if err := requireStrings(mapping, itemPath, diag.CodeInvalidLookup, "field", "relatedField"); err != nil {
			return err
		}
	}

	if fc.typ == TypeNumber {
		inferUnitPosition(fc, def)
	}
	return nil
}

type referenceTableVariant struct{}

func (referenceTableVariant) normalize(fc *fieldContext, def *Definition) error {
	raw, present := def.Attr("referenceTable")
	if !present && fc.partial {
		return nil
	}
	path := diag.JoinPath(fc.path, "referenceTable")
	table, ok := raw.(*ordered.Object)
	if !ok {
		return diag.Errorf(diag.CodeInvalidReferenceTable, path, "referenceTable settings are required")
	}
	if err := requireRelatedApp(table, path, diag.CodeInvalidReferenceTable); err != nil {
		return err
	}
	condPath := diag.JoinPath(path, "condition")
	condition, ok := table.Object("condition")
	if !ok {
		return diag.Errorf(diag.CodeInvalidReferenceTable, condPath, "condition is required")
	}
	if err := requireStrings(condition, condPath, diag.CodeInvalidReferenceTable, "field", "relatedField"); err != nil {
		return err
	}
	if size, has := table.Get("size"); has {
		if !contains(ReferenceTableSizes, scalarString(size)) {
			return diag.Errorf(diag.CodeInvalidReferenceTable, diag.JoinPath(path, "size"),
				"size must be one of %s, got %v", strings.Join(ReferenceTableSizes, ", "), size)
		}
	}
	return nil
}

type subtableVariant struct{}

func (subtableVariant) normalize(fc *fieldContext, def *Definition) error {
	path := diag.JoinPath(fc.path, "fields")
	if def.Fields == nil {
		if raw, present := def.Attr("fields"); present {
			return diag.Errorf(diag.CodeInvalidSubtable, path, "fields must be an object keyed by field code, got %s", describe(raw))
		}
		if fc.partial {
			return nil
		}
		return diag.Errorf(diag.CodeInvalidSubtable, path, "subtable fields are required")
	}
	if !fc.partial && def.Fields.Len() == 0 {
		return diag.Errorf(diag.CodeInvalidSubtable, path, "a subtable needs at least one field")
	}

	var prior *Properties
	mode := ModeAdd
	if fc.partial && fc.prior != nil {
		prior = fc.prior.Fields
		mode = ModeUpdate
	}
	scope := fieldcode.NewScope(prior.Codes()...)
	nested, diags, err := fc.normalizer.normalizeSet(def.Fields, prior, scope, mode, path, true)
	if err != nil {
		return err
	}
	fc.diags.Append(diags)
	def.Fields = nested
	return nil
}

func requireRelatedApp(obj *ordered.Object, path string, code diag.Code) error {
	appPath := diag.JoinPath(path, "relatedApp")
	related, ok := obj.Object("relatedApp")
	if !ok {
		return diag.Errorf(code, appPath, "relatedApp is required")
	}
	appValue, _ := related.Get("app")
	appCode, _ := related.String("code")
	if strings.TrimSpace(scalarString(appValue)) == "" && strings.TrimSpace(appCode) == "" {
		return diag.Errorf(code, appPath, "relatedApp needs an app id or app code")
	}
	return nil
}

func requireStrings(obj *ordered.Object, path string, code diag.Code, keys ...string) error {
	for _, key := range keys {
		value, _ := obj.String(key)
		if strings.TrimSpace(value) == "" {
			return diag.Errorf(code, diag.JoinPath(path, key), "%s is required", key)
		}
	}
	return nil
}

func scalarString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

func indexSegment(idx int) string {
	return "[" + strconv.Itoa(idx) + "]"
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
