package layout_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
)

func mustLayout(t *testing.T, raw string) []layout.Node {
	t.Helper()
	nodes, err := layout.Decode([]byte(raw), "layout.json")
	if err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	return nodes
}

func TestParseBuildsTypedTree(t *testing.T) {
	nodes := mustLayout(t, `[
		{"type": "ROW", "fields": [
			{"type": "SINGLE_LINE_TEXT", "code": "title", "size": {"width": "200"}},
			{"type": "LABEL", "value": "<b>Notes</b>", "elementId": "hint"},
			{"type": "SPACER", "elementId": "gap"}
		]},
		{"type": "GROUP", "code": "details", "label": "Details", "openGroup": true, "layout": [
			{"type": "ROW", "fields": [{"type": "NUMBER", "code": "qty"}]}
		]},
		{"type": "SUBTABLE", "code": "lines", "fields": [{"type": "SINGLE_LINE_TEXT", "code": "sku"}]}
	]`)

	var kinds []layout.NodeType
	for _, node := range nodes {
		kinds = append(kinds, node.Kind())
	}
	want := []layout.NodeType{layout.NodeRow, layout.NodeGroup, layout.NodeSubtable}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("node kinds mismatch (-want +got):\n%s", diff)
	}

	row := nodes[0].(*layout.Row)
	if row.Fields[0].Size.Width.String() != "200" || *row.Fields[1].Value != "<b>Notes</b>" {
		t.Fatalf("unexpected row contents: %+v", row.Fields)
	}
	group := nodes[1].(*layout.Group)
	if group.Label == nil || *group.Label != "Details" || group.OpenGroup == nil || !*group.OpenGroup {
		t.Fatalf("unexpected group attributes: %+v", group)
	}
	if diff := cmp.Diff([]string{"title", "details", "qty", "lines"}, layout.Codes(nodes)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAcceptsReadEnvelope(t *testing.T) {
	nodes := mustLayout(t, `{"layout": [{"type": "ROW", "fields": []}], "revision": "4"}`)
	if len(nodes) != 1 || nodes[0].Kind() != layout.NodeRow {
		t.Fatalf("unexpected nodes %#v", nodes)
	}
}

func TestParseRejectsInvalidStructure(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
		path  string
	}{
		{
			name:  "group inside row",
			input: `[{"type": "ROW", "fields": [{"type": "GROUP", "code": "g", "layout": []}]}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].fields[0]",
		},
		{
			name:  "label at top level",
			input: `[{"type": "LABEL", "value": "x"}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0]",
		},
		{
			name:  "row fields not an array",
			input: `[{"type": "ROW", "fields": {"type": "NUMBER"}}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].fields",
		},
		{
			name:  "label without value",
			input: `[{"type": "ROW", "fields": [{"type": "LABEL"}]}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].fields[0]",
		},
		{
			name:  "field element without code",
			input: `[{"type": "ROW", "fields": [{"type": "NUMBER"}]}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].fields[0]",
		},
		{
			name:  "unknown element type",
			input: `[{"type": "ROW", "fields": [{"type": "WIDGET", "code": "w"}]}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].fields[0]",
		},
		{
			name:  "group layout not an array",
			input: `[{"type": "GROUP", "code": "g", "layout": "ROW"}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].layout",
		},
		{
			name:  "group containing label node",
			input: `[{"type": "GROUP", "code": "g", "layout": [{"type": "HR"}]}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0].layout[0]",
		},
		{
			name:  "subtable without code",
			input: `[{"type": "SUBTABLE", "fields": []}]`,
			want:  diag.ErrInvalidLayoutNode,
			path:  "layout[0]",
		},
		{
			name:  "width with px suffix",
			input: `[{"type": "ROW", "fields": [{"type": "NUMBER", "code": "n", "size": {"width": "200px"}}]}]`,
			want:  diag.ErrInvalidFieldSize,
			path:  "layout[0].fields[0].size.width",
		},
		{
			name:  "percentage inner height",
			input: `[{"type": "ROW", "fields": [{"type": "MULTI_LINE_TEXT", "code": "m", "size": {"width": "300", "innerHeight": "100%"}}]}]`,
			want:  diag.ErrInvalidFieldSize,
			path:  "layout[0].fields[0].size.innerHeight",
		},
		{
			name:  "fractional numeric width",
			input: `[{"type": "ROW", "fields": [{"type": "NUMBER", "code": "n", "size": {"width": 12.5}}]}]`,
			want:  diag.ErrInvalidFieldSize,
			path:  "layout[0].fields[0].size.width",
		},
		{
			name:  "size not an object",
			input: `[{"type": "ROW", "fields": [{"type": "NUMBER", "code": "n", "size": "200"}]}]`,
			want:  diag.ErrInvalidFieldSize,
			path:  "layout[0].fields[0].size",
		},
		{
			name:  "nested size violation",
			input: `[{"type": "GROUP", "code": "g", "layout": [{"type": "ROW", "fields": [{"type": "DATE", "code": "d"}, {"type": "DATE", "code": "e", "size": {"height": "1em"}}]}]}]`,
			want:  diag.ErrInvalidFieldSize,
			path:  "layout[0].layout[0].fields[1].size.height",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := layout.Decode([]byte(tc.input), "layout.json")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var derr *diag.Error
			if !errors.As(err, &derr) || derr.Path != tc.path {
				t.Fatalf("unexpected path: want %q, got %v", tc.path, err)
			}
		})
	}
}

func TestParseFailsOnFirstViolationInDocumentOrder(t *testing.T) {
	_, err := layout.Decode([]byte(`[
		{"type": "ROW", "fields": [{"type": "NUMBER", "code": "n", "size": {"width": "10px"}}]},
		{"type": "ROW", "fields": "oops"}
	]`), "layout.json")
	var derr *diag.Error
	if !errors.As(err, &derr) || derr.Path != "layout[0].fields[0].size.width" {
		t.Fatalf("expected the first node's violation, got %v", err)
	}
}

func TestParseAcceptsPlainIntegerSizes(t *testing.T) {
	mustLayout(t, `[{"type": "ROW", "fields": [
		{"type": "NUMBER", "code": "n", "size": {"width": "200"}},
		{"type": "MULTI_LINE_TEXT", "code": "m", "size": {"width": 300, "innerHeight": "125"}}
	]}]`)
}

func TestValidateTypedTree(t *testing.T) {
	nodes := []layout.Node{
		&layout.Row{Fields: []layout.Element{{Type: "NUMBER", Code: "n", Size: &layout.Size{Width: layout.Dim("200")}}}},
		&layout.Row{Fields: []layout.Element{{Type: "GROUP", Code: "g"}}},
	}
	err := layout.Validate(nodes)
	var derr *diag.Error
	if !errors.As(err, &derr) || derr.Path != "layout[1].fields[0]" {
		t.Fatalf("expected GROUP-in-ROW rejection, got %v", err)
	}

	if err := layout.Validate(nodes[:1]); err != nil {
		t.Fatalf("unexpected error for a valid tree: %v", err)
	}
}
