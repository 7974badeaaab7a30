package layout

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
)

// RootPath prefixes every layout diagnostic.
const RootPath = "layout"

var sizePattern = regexp.MustCompile(`^\d+$`)

// Decode parses JSON or YAML bytes into a validated layout tree.
func Decode(data []byte, source string) ([]Node, error) {
	raw, err := ordered.ParseDocument(data, source)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse validates a decoded layout and builds its typed tree. raw is either
// the node array or an object carrying it under "layout", as returned by the
// read endpoint. Validation fails fast on the first violation in document
// order.
func Parse(raw any) ([]Node, error) {
	raw = ordered.FromAny(raw)
	if obj, ok := raw.(*ordered.Object); ok {
		inner, has := obj.Get("layout")
		if !has {
			return nil, diag.Errorf(diag.CodeInvalidLayoutNode, RootPath, "expected a layout array")
		}
		raw = inner
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, diag.Errorf(diag.CodeInvalidLayoutNode, RootPath, "layout must be an array, got %s", describe(raw))
	}
	return parseNodes(items, RootPath)
}

func parseNodes(items []any, base string) ([]Node, error) {
	nodes := make([]Node, 0, len(items))
	for idx, item := range items {
		path := base + "[" + strconv.Itoa(idx) + "]"
		node, err := parseNode(item, path)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseNode(raw any, path string) (Node, error) {
	obj, ok := raw.(*ordered.Object)
	if !ok {
		return nil, diag.Errorf(diag.CodeInvalidLayoutNode, path, "layout node must be an object, got %s", describe(raw))
	}
	typ, _ := obj.String("type")

	switch NodeType(typ) {
	case NodeRow:
		row := &Row{Extra: extraOf(obj, "type", "fields")}
		elements, err := parseElements(obj, path)
		if err != nil {
			return nil, err
		}
		row.Fields = elements
		return row, nil

	case NodeGroup:
		group := &Group{Extra: extraOf(obj, "type", "code", "label", "openGroup", "layout")}
		group.Code, _ = obj.String("code")
		if value, has := obj.Get("label"); has {
			label, isString := value.(string)
			if !isString {
				return nil, diag.Errorf(diag.CodeInvalidLayoutNode, diag.JoinPath(path, "label"), "label must be a string")
			}
			group.Label = &label
		}
		if value, has := obj.Get("openGroup"); has {
			open, isBool := value.(bool)
			if !isBool {
				return nil, diag.Errorf(diag.CodeInvalidLayoutNode, diag.JoinPath(path, "openGroup"), "openGroup must be a boolean")
			}
			group.OpenGroup = &open
		}
		layoutPath := diag.JoinPath(path, "layout")
		children, ok := obj.Get("layout")
		items, isArray := children.([]any)
		if !ok || !isArray {
			return nil, diag.Errorf(diag.CodeInvalidLayoutNode, layoutPath, "GROUP layout must be an array, got %s", describe(children))
		}
		nested, err := parseNodes(items, layoutPath)
		if err != nil {
			return nil, err
		}
		group.Layout = nested
		return group, nil

	case NodeSubtable:
		table := &Subtable{Extra: extraOf(obj, "type", "code", "fields")}
		table.Code, _ = obj.String("code")
		if table.Code == "" {
			return nil, diag.Errorf(diag.CodeInvalidLayoutNode, path, "SUBTABLE requires a code")
		}
		if _, has := obj.Get("fields"); has {
			elements, err := parseElements(obj, path)
			if err != nil {
				return nil, err
			}
			table.Fields = elements
		}
		return table, nil

	default:
		return nil, diag.Errorf(diag.CodeInvalidLayoutNode, path, "top-level layout nodes must be ROW, GROUP or SUBTABLE, got %q", typ)
	}
}

func parseElements(obj *ordered.Object, path string) ([]Element, error) {
	fieldsPath := diag.JoinPath(path, "fields")
	raw, _ := obj.Get("fields")
	items, ok := raw.([]any)
	if !ok {
		return nil, diag.Errorf(diag.CodeInvalidLayoutNode, fieldsPath, "fields must be an array, got %s", describe(raw))
	}
	elements := make([]Element, 0, len(items))
	for idx, item := range items {
		elPath := fieldsPath + "[" + strconv.Itoa(idx) + "]"
		el, err := parseElement(item, elPath)
		if err != nil {
			return nil, err
		}
		if err := checkElement(el, elPath); err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return elements, nil
}

func parseElement(raw any, path string) (Element, error) {
	obj, ok := raw.(*ordered.Object)
	if !ok {
		return Element{}, diag.Errorf(diag.CodeInvalidLayoutNode, path, "field element must be an object, got %s", describe(raw))
	}
	el := Element{Extra: extraOf(obj, "type", "code", "value", "elementId", "size")}
	el.Type, _ = obj.String("type")
	el.Code, _ = obj.String("code")
	el.ElementID, _ = obj.String("elementId")
	if value, has := obj.Get("value"); has {
		str, isString := value.(string)
		if !isString {
			return Element{}, diag.Errorf(diag.CodeInvalidLayoutNode, diag.JoinPath(path, "value"), "value must be a string")
		}
		el.Value = &str
	}
	if value, has := obj.Get("size"); has {
		sizeObj, isObject := value.(*ordered.Object)
		if !isObject {
			return Element{}, diag.Errorf(diag.CodeInvalidFieldSize, diag.JoinPath(path, "size"), "size must be an object, got %s", describe(value))
		}
		el.Size = &Size{Extra: extraOf(sizeObj, "width", "height", "innerHeight")}
		el.Size.Width = dimensionOf(sizeObj, "width")
		el.Size.Height = dimensionOf(sizeObj, "height")
		el.Size.InnerHeight = dimensionOf(sizeObj, "innerHeight")
	}
	return el, nil
}

func dimensionOf(obj *ordered.Object, key string) Dimension {
	value, _ := obj.Get(key)
	return Dimension{raw: value}
}

// Validate checks a typed tree against the same structural rules Parse
// enforces, for trees built in code.
func Validate(nodes []Node) error {
	return validateNodes(nodes, RootPath)
}

func validateNodes(nodes []Node, base string) error {
	for idx, node := range nodes {
		path := base + "[" + strconv.Itoa(idx) + "]"
		switch typed := node.(type) {
		case *Row:
			if err := validateElements(typed.Fields, diag.JoinPath(path, "fields")); err != nil {
				return err
			}
		case *Group:
			if err := validateNodes(typed.Layout, diag.JoinPath(path, "layout")); err != nil {
				return err
			}
		case *Subtable:
			if typed.Code == "" {
				return diag.Errorf(diag.CodeInvalidLayoutNode, path, "SUBTABLE requires a code")
			}
			if err := validateElements(typed.Fields, diag.JoinPath(path, "fields")); err != nil {
				return err
			}
		default:
			return diag.Errorf(diag.CodeInvalidLayoutNode, path, "unsupported layout node %T", node)
		}
	}
	return nil
}

func validateElements(elements []Element, base string) error {
	for idx, el := range elements {
		if err := checkElement(el, base+"["+strconv.Itoa(idx)+"]"); err != nil {
			return err
		}
	}
	return nil
}

func checkElement(el Element, path string) error {
	switch el.Type {
	case ElementLabel:
		if el.Value == nil {
			return diag.Errorf(diag.CodeInvalidLayoutNode, path, "LABEL elements require a value")
		}
	case ElementSpacer, ElementHR:
	case string(fields.TypeGroup), string(fields.TypeSubtable):
		return diag.Errorf(diag.CodeInvalidLayoutNode, path, "%s cannot be placed inside a row", el.Type)
	case "":
		return diag.Errorf(diag.CodeInvalidLayoutNode, path, "field element requires a type")
	default:
		if !fields.Type(el.Type).Placeable() {
			return diag.Errorf(diag.CodeInvalidLayoutNode, path, "%q is not a layout element type", el.Type)
		}
		if el.Code == "" {
			return diag.Errorf(diag.CodeInvalidLayoutNode, path, "%s elements require a code", el.Type)
		}
	}
	if el.Size == nil {
		return nil
	}
	sizePath := diag.JoinPath(path, "size")
	for _, dim := range []struct {
		name  string
		value Dimension
	}{
		{"width", el.Size.Width},
		{"height", el.Size.Height},
		{"innerHeight", el.Size.InnerHeight},
	} {
		if err := checkDimension(dim.value, diag.JoinPath(sizePath, dim.name)); err != nil {
			return err
		}
	}
	return nil
}

// checkDimension accepts integer strings and integral non-negative numbers.
func checkDimension(dim Dimension, path string) error {
	switch typed := dim.raw.(type) {
	case nil:
		return nil
	case string:
		if !sizePattern.MatchString(typed) {
			return diag.Errorf(diag.CodeInvalidFieldSize, path, "size %q must be a plain integer without units", typed)
		}
		return nil
	case json.Number:
		value, err := typed.Int64()
		if err != nil || value < 0 {
			return diag.Errorf(diag.CodeInvalidFieldSize, path, "size %s must be a non-negative integer", typed)
		}
		return nil
	default:
		return diag.Errorf(diag.CodeInvalidFieldSize, path, "size must be a string, got %s", describe(typed))
	}
}

func extraOf(obj *ordered.Object, known ...string) *ordered.Object {
	var extra *ordered.Object
	for _, key := range obj.Keys() {
		if containsKey(known, key) {
			continue
		}
		if extra == nil {
			extra = ordered.NewObject()
		}
		value, _ := obj.Get(key)
		extra.Set(key, ordered.CloneValue(value))
	}
	return extra
}

func containsKey(list []string, key string) bool {
	for _, item := range list {
		if item == key {
			return true
		}
	}
	return false
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case *ordered.Object:
		return "object"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
