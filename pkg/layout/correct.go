package layout

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
)

// FallbackWidth is used for field types without an entry in the width table.
const FallbackWidth = "193"

// DefaultWidths are the widths assigned to field elements lacking one.
var DefaultWidths = map[string]string{
	string(fields.TypeMultiLineText):      "315",
	string(fields.TypeRichText):           "315",
	string(fields.TypeCheckBox):           "239",
	string(fields.TypeRadioButton):        "239",
	string(fields.TypeMultiSelect):        "239",
	string(fields.TypeFile):               "247",
	string(fields.TypeUserSelect):         "251",
	string(fields.TypeOrganizationSelect): "251",
	string(fields.TypeGroupSelect):        "251",
	string(fields.TypeDateTime):           "221",
	string(fields.TypeReferenceTable):     "500",
}

// ExistingField is the part of a snapshot field the corrector needs. Fields
// lists subtable columns in order.
type ExistingField struct {
	Code   string
	Type   fields.Type
	Fields []ExistingField
}

// ExistingFromProperties flattens a snapshot into ExistingField values in
// snapshot order.
func ExistingFromProperties(props *fields.Properties) []ExistingField {
	out := make([]ExistingField, 0, props.Len())
	for _, key := range props.Keys() {
		def, _ := props.Get(key)
		code := def.Code
		if code == "" {
			code = key
		}
		field := ExistingField{Code: code, Type: def.Type}
		if def.Fields != nil {
			field.Fields = ExistingFromProperties(def.Fields)
		}
		out = append(out, field)
	}
	return out
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithAutoInsertMissing appends a node for every existing field the layout
// does not reference.
func WithAutoInsertMissing(enabled bool) Option {
	return func(c *Corrector) {
		c.autoInsert = enabled
	}
}

// WithDefaultWidths overrides per-type default widths. Entries are merged
// over DefaultWidths; invalid widths are ignored.
func WithDefaultWidths(widths map[string]string) Option {
	return func(c *Corrector) {
		for typ, width := range widths {
			if sizePattern.MatchString(width) {
				c.widths[strings.ToUpper(typ)] = width
			}
		}
	}
}

// WithFallbackWidth sets the width used for types missing from the table.
func WithFallbackWidth(width string) Option {
	return func(c *Corrector) {
		if sizePattern.MatchString(width) {
			c.fallback = width
		}
	}
}

// WithLabelSanitizing toggles HTML sanitising of LABEL element values.
func WithLabelSanitizing(enabled bool) Option {
	return func(c *Corrector) {
		c.sanitize = enabled
	}
}

// Corrector cross-checks a layout against the app's fields and prepares it
// for submission. It only touches presentation attributes.
type Corrector struct {
	autoInsert bool
	sanitize   bool
	widths     map[string]string
	fallback   string
}

// NewCorrector constructs a Corrector. Label sanitising is on and
// auto-insertion is off by default.
func NewCorrector(options ...Option) *Corrector {
	c := &Corrector{
		sanitize: true,
		widths:   make(map[string]string, len(DefaultWidths)),
		fallback: FallbackWidth,
	}
	for typ, width := range DefaultWidths {
		c.widths[typ] = width
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Correct validates nodes and returns a corrected copy plus diagnostics. The
// input tree is not modified. On a fatal error nothing else is returned.
func (c *Corrector) Correct(nodes []Node, existing []ExistingField) ([]Node, diag.List, error) {
	if err := Validate(nodes); err != nil {
		return nil, nil, err
	}

	out := Clone(nodes)
	if out == nil {
		out = []Node{}
	}
	var diags diag.List
	referenced := make(map[string]struct{})
	c.correctNodes(out, RootPath, referenced, &diags)

	for _, field := range missingFields(existing, referenced) {
		if !c.autoInsert {
			diags.Warn(diag.CodeFieldMissingFromLayout, RootPath,
				"field %q (%s) exists on the app but is not placed in the layout", field.Code, field.Type)
			continue
		}
		out = append(out, c.nodeFor(field))
		diags.Warn(diag.CodeFieldInsertedInLayout, RootPath+"["+strconv.Itoa(len(out)-1)+"]",
			"field %q (%s) was missing from the layout and has been appended", field.Code, field.Type)
	}
	return out, diags, nil
}

func (c *Corrector) correctNodes(nodes []Node, base string, referenced map[string]struct{}, diags *diag.List) {
	for idx, node := range nodes {
		path := base + "[" + strconv.Itoa(idx) + "]"
		switch typed := node.(type) {
		case *Row:
			c.correctElements(typed.Fields, diag.JoinPath(path, "fields"), referenced, diags)
		case *Group:
			typed.Label = nil
			if typed.Code != "" {
				referenced[typed.Code] = struct{}{}
			}
			c.correctNodes(typed.Layout, diag.JoinPath(path, "layout"), referenced, diags)
		case *Subtable:
			referenced[typed.Code] = struct{}{}
			c.correctElements(typed.Fields, diag.JoinPath(path, "fields"), nil, diags)
		}
	}
}

// correctElements fixes elements in place. referenced is nil for subtable
// columns, which are not part of the top-level field set.
func (c *Corrector) correctElements(elements []Element, base string, referenced map[string]struct{}, diags *diag.List) {
	for idx := range elements {
		el := &elements[idx]
		path := base + "[" + strconv.Itoa(idx) + "]"

		if referenced != nil && el.IsField() && el.Code != "" {
			referenced[el.Code] = struct{}{}
		}
		if el.Type == ElementLabel && c.sanitize && el.Value != nil {
			if cleaned, changed := sanitizeLabel(*el.Value); changed {
				el.Value = &cleaned
				diags.Warn(diag.CodeLabelSanitized, diag.JoinPath(path, "value"), "LABEL markup sanitised to %q", cleaned)
			}
		}
		c.correctSize(el, path, diags)
	}
}

func (c *Corrector) correctSize(el *Element, path string, diags *diag.List) {
	sizePath := diag.JoinPath(path, "size")
	if el.Size != nil {
		for _, dim := range []struct {
			name  string
			value *Dimension
		}{
			{"width", &el.Size.Width},
			{"height", &el.Size.Height},
			{"innerHeight", &el.Size.InnerHeight},
		} {
			if dim.value.IsSet() && !dim.value.IsString() {
				text := dim.value.String()
				*dim.value = Dim(text)
				diags.Warn(diag.CodeSizeCoerced, diag.JoinPath(sizePath, dim.name), "numeric size %s rewritten as string %q", text, text)
			}
		}
	}

	if !el.IsField() {
		return
	}
	if el.Size != nil && el.Size.Width.IsSet() && el.Size.Width.String() != "0" {
		return
	}
	width := c.widthFor(el.Type)
	if el.Size == nil {
		el.Size = &Size{}
	}
	el.Size.Width = Dim(width)
	diags.Warn(diag.CodeWidthAssigned, diag.JoinPath(sizePath, "width"), "%s element %q given default width %s", el.Type, el.Code, width)
}

func (c *Corrector) widthFor(typ string) string {
	if width, ok := c.widths[typ]; ok {
		return width
	}
	return c.fallback
}

func (c *Corrector) nodeFor(field ExistingField) Node {
	switch field.Type {
	case fields.TypeGroup:
		return &Group{Code: field.Code, Layout: []Node{}}
	case fields.TypeSubtable:
		table := &Subtable{Code: field.Code}
		for _, column := range field.Fields {
			table.Fields = append(table.Fields, c.elementFor(column))
		}
		return table
	default:
		return &Row{Fields: []Element{c.elementFor(field)}}
	}
}

func (c *Corrector) elementFor(field ExistingField) Element {
	typ := string(field.Type)
	return Element{Type: typ, Code: field.Code, Size: &Size{Width: Dim(c.widthFor(typ))}}
}

func missingFields(existing []ExistingField, referenced map[string]struct{}) []ExistingField {
	var missing []ExistingField
	for _, field := range existing {
		if !field.Type.Placeable() {
			continue
		}
		if _, ok := referenced[field.Code]; ok {
			continue
		}
		missing = append(missing, field)
	}
	return missing
}

// Codes returns the field codes referenced by the top level of a layout in
// document order: row elements, groups and subtables.
func Codes(nodes []Node) []string {
	var out []string
	var walk func([]Node)
	walk = func(nodes []Node) {
		for _, node := range nodes {
			switch typed := node.(type) {
			case *Row:
				for _, el := range typed.Fields {
					if el.IsField() && el.Code != "" {
						out = append(out, el.Code)
					}
				}
			case *Group:
				if typed.Code != "" {
					out = append(out, typed.Code)
				}
				walk(typed.Layout)
			case *Subtable:
				out = append(out, typed.Code)
			}
		}
	}
	walk(nodes)
	return out
}
