package layout

import (
	"encoding/json"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
)

// NodeType discriminates top-level layout nodes.
type NodeType string

const (
	NodeRow      NodeType = "ROW"
	NodeGroup    NodeType = "GROUP"
	NodeSubtable NodeType = "SUBTABLE"
)

// Element types that are not backed by a field definition.
const (
	ElementLabel  = "LABEL"
	ElementSpacer = "SPACER"
	ElementHR     = "HR"
)

// Node is one entry of a layout tree: *Row, *Group or *Subtable.
type Node interface {
	json.Marshaler
	Kind() NodeType
	clone() Node
}

// Row is a horizontal line of field elements.
type Row struct {
	Fields []Element
	Extra  *ordered.Object
}

// Group is a collapsible section holding nested nodes.
type Group struct {
	Code string
	// Label is returned by the read endpoint and rejected by the update
	// endpoint; nil means absent.
	Label     *string
	OpenGroup *bool
	Layout    []Node
	Extra     *ordered.Object
}

// Subtable places a table field and its columns.
type Subtable struct {
	Code   string
	Fields []Element
	Extra  *ordered.Object
}

// Element is one item inside a ROW or SUBTABLE node. Type is a field type for
// field elements, or LABEL, SPACER or HR.
type Element struct {
	Type      string
	Code      string
	Value     *string
	ElementID string
	Size      *Size
	Extra     *ordered.Object
}

// Size holds element dimensions. Each value is kept as decoded so numeric
// input can be reported and coerced.
type Size struct {
	Width       Dimension
	Height      Dimension
	InnerHeight Dimension
	Extra       *ordered.Object
}

// Dimension is a single size value: a string, a json.Number, or absent.
type Dimension struct {
	raw any
}

// Dim builds a string dimension.
func Dim(value string) Dimension {
	return Dimension{raw: value}
}

// IsSet reports whether the dimension was given.
func (d Dimension) IsSet() bool {
	return d.raw != nil
}

// IsString reports whether the dimension is already string-encoded.
func (d Dimension) IsString() bool {
	_, ok := d.raw.(string)
	return ok
}

// String returns the textual value.
func (d Dimension) String() string {
	switch typed := d.raw.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case nil:
		return ""
	default:
		return describe(typed)
	}
}

func (*Row) Kind() NodeType      { return NodeRow }
func (*Group) Kind() NodeType    { return NodeGroup }
func (*Subtable) Kind() NodeType { return NodeSubtable }

func (r *Row) clone() Node {
	return &Row{Fields: cloneElements(r.Fields), Extra: r.Extra.Clone()}
}

func (g *Group) clone() Node {
	out := &Group{Code: g.Code, Layout: Clone(g.Layout), Extra: g.Extra.Clone()}
	if g.Label != nil {
		label := *g.Label
		out.Label = &label
	}
	if g.OpenGroup != nil {
		open := *g.OpenGroup
		out.OpenGroup = &open
	}
	return out
}

func (s *Subtable) clone() Node {
	return &Subtable{Code: s.Code, Fields: cloneElements(s.Fields), Extra: s.Extra.Clone()}
}

// Clone deep-copies a layout tree.
func Clone(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for idx, node := range nodes {
		if node != nil {
			out[idx] = node.clone()
		}
	}
	return out
}

func cloneElements(elements []Element) []Element {
	if elements == nil {
		return nil
	}
	out := make([]Element, len(elements))
	for idx, el := range elements {
		out[idx] = el.Clone()
	}
	return out
}

// Clone deep-copies the element.
func (e Element) Clone() Element {
	out := e
	if e.Value != nil {
		value := *e.Value
		out.Value = &value
	}
	if e.Size != nil {
		size := *e.Size
		size.Extra = e.Size.Extra.Clone()
		out.Size = &size
	}
	out.Extra = e.Extra.Clone()
	return out
}

// IsField reports whether the element references a field definition.
func (e Element) IsField() bool {
	switch e.Type {
	case ElementLabel, ElementSpacer, ElementHR:
		return false
	}
	return true
}

func (r *Row) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	out.Set("type", string(NodeRow))
	out.Set("fields", elementsOrEmpty(r.Fields))
	appendExtra(out, r.Extra)
	return out.MarshalJSON()
}

func (g *Group) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	out.Set("type", string(NodeGroup))
	if g.Code != "" {
		out.Set("code", g.Code)
	}
	if g.Label != nil {
		out.Set("label", *g.Label)
	}
	if g.OpenGroup != nil {
		out.Set("openGroup", *g.OpenGroup)
	}
	layout := g.Layout
	if layout == nil {
		layout = []Node{}
	}
	out.Set("layout", layout)
	appendExtra(out, g.Extra)
	return out.MarshalJSON()
}

func (s *Subtable) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	out.Set("type", string(NodeSubtable))
	out.Set("code", s.Code)
	out.Set("fields", elementsOrEmpty(s.Fields))
	appendExtra(out, s.Extra)
	return out.MarshalJSON()
}

func (e Element) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	out.Set("type", e.Type)
	if e.Code != "" {
		out.Set("code", e.Code)
	}
	if e.Value != nil {
		out.Set("value", *e.Value)
	}
	if e.ElementID != "" {
		out.Set("elementId", e.ElementID)
	}
	if e.Size != nil {
		out.Set("size", e.Size)
	}
	appendExtra(out, e.Extra)
	return out.MarshalJSON()
}

func (s *Size) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	if s.Width.IsSet() {
		out.Set("width", s.Width.raw)
	}
	if s.Height.IsSet() {
		out.Set("height", s.Height.raw)
	}
	if s.InnerHeight.IsSet() {
		out.Set("innerHeight", s.InnerHeight.raw)
	}
	appendExtra(out, s.Extra)
	return out.MarshalJSON()
}

func elementsOrEmpty(elements []Element) []Element {
	if elements == nil {
		return []Element{}
	}
	return elements
}

func appendExtra(out, extra *ordered.Object) {
	for _, key := range extra.Keys() {
		if out.Has(key) {
			continue
		}
		value, _ := extra.Get(key)
		out.Set(key, value)
	}
}
