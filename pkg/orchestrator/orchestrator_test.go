package orchestrator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
	"github.com/goliatone/go-kintone-forms/pkg/testsupport"
)

const appFields = `{
	"title": {"type": "SINGLE_LINE_TEXT", "code": "title", "label": "Title"},
	"amount": {"type": "NUMBER", "code": "amount", "label": "Amount"},
	"status": {"type": "STATUS", "code": "status", "label": "Status"}
}`

const appLayout = `[
	{"type": "ROW", "fields": [{"type": "SINGLE_LINE_TEXT", "code": "title", "size": {"width": "200"}}]}
]`

func seededClient(t *testing.T) *testsupport.FakeClient {
	t.Helper()
	return testsupport.NewFakeClient().Seed("1",
		testsupport.MustProperties(t, appFields),
		testsupport.MustLayout(t, appLayout),
		5,
	)
}

func marshal(t *testing.T, value any) string {
	t.Helper()
	out, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(out)
}

func TestAddFieldsSubmitsNormalizedPayload(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	props := testsupport.MustProperties(t, `{
		"title": {"type": "SINGLE_LINE_TEXT", "label": "title"},
		"price": {"type": "NUMBER", "label": "price", "unit": "$"}
	}`)
	result, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props})
	if err != nil {
		t.Fatalf("add fields: %v", err)
	}

	if result.Revision != 6 {
		t.Fatalf("expected revision 6, got %d", result.Revision)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected rename and unit warnings, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], `"title_1"`) {
		t.Fatalf("first warning should name the rename: %q", result.Warnings[0])
	}

	call, ok := client.LastCall("AddFormFields")
	if !ok {
		t.Fatalf("expected AddFormFields to be called")
	}
	if call.Revision != platform.LatestRevision {
		t.Fatalf("expected latest revision, got %d", call.Revision)
	}
	want := `{"title_1":{"type":"SINGLE_LINE_TEXT","code":"title_1","label":"title"},` +
		`"price":{"type":"NUMBER","code":"price","label":"price","unit":"$","unitPosition":"BEFORE"}}`
	if got := marshal(t, call.Properties); got != want {
		t.Fatalf("payload mismatch:\nwant %s\ngot  %s", want, got)
	}
	if diff := cmp.Diff([]string{"GetFormFields", "AddFormFields"}, client.Methods()); diff != "" {
		t.Fatalf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestAddFieldsRejectsBeforeAnyRemoteCall(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	props := testsupport.MustProperties(t, `{
		"ok": {"type": "SINGLE_LINE_TEXT", "label": "Fine"},
		"bad": {"type": "CALC", "label": "No expression"}
	}`)
	_, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props})
	if !errors.Is(err, diag.ErrMissingExpression) {
		t.Fatalf("expected MissingExpression, got %v", err)
	}
	if calls := client.Calls(); len(calls) != 0 {
		t.Fatalf("expected no remote calls, got %v", client.Methods())
	}
}

func TestUpdateFormFieldsRejectsUnknownField(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	props := testsupport.MustProperties(t, `{"nope": {"label": "Nope"}}`)
	_, err := orch.UpdateFormFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props, Revision: 5})
	if !errors.Is(err, diag.ErrUnknownField) {
		t.Fatalf("expected UnknownField, got %v", err)
	}
	if diff := cmp.Diff([]string{"GetFormFields"}, client.Methods()); diff != "" {
		t.Fatalf("only the snapshot read is expected (-want +got):\n%s", diff)
	}
}

func TestUpdateFormFieldsPassesRevisionConflictThrough(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	props := testsupport.MustProperties(t, `{"title": {"label": "Headline"}}`)
	_, err := orch.UpdateFormFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props, Revision: 2})

	remote, ok := err.(*platform.RemoteError)
	if !ok {
		t.Fatalf("expected an unwrapped *platform.RemoteError, got %T: %v", err, err)
	}
	if !remote.IsRevisionConflict() {
		t.Fatalf("expected a revision conflict, got %v", remote)
	}
}

func TestUpdateFormFieldsAppliesPatch(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	props := testsupport.MustProperties(t, `{"amount": {"unit": "kg"}}`)
	result, err := orch.UpdateFormFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props, Revision: 5})
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}
	if result.Revision != 6 {
		t.Fatalf("expected revision 6, got %d", result.Revision)
	}
	call, _ := client.LastCall("UpdateFormFields")
	want := `{"amount":{"unit":"kg","unitPosition":"AFTER"}}`
	if got := marshal(t, call.Properties); got != want {
		t.Fatalf("payload mismatch:\nwant %s\ngot  %s", want, got)
	}
}

func TestUpdateFormLayoutCorrectsAndReportsMissingFields(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	nodes := testsupport.MustLayout(t, `[
		{"type": "ROW", "fields": [{"type": "NUMBER", "code": "amount"}]},
		{"type": "GROUP", "code": "grp", "label": "Dropped", "layout": []}
	]`)
	result, err := orch.UpdateFormLayout(testsupport.Context(), orchestrator.LayoutRequest{App: "1", Layout: nodes})
	if err != nil {
		t.Fatalf("update layout: %v", err)
	}

	wantWarnings := []diag.Code{diag.CodeWidthAssigned, diag.CodeFieldMissingFromLayout}
	if len(result.Warnings) != len(wantWarnings) {
		t.Fatalf("expected %d warnings, got %v", len(wantWarnings), result.Warnings)
	}
	if !strings.Contains(result.Warnings[1], `"title"`) {
		t.Fatalf("expected the missing field to be named, got %q", result.Warnings[1])
	}

	call, _ := client.LastCall("UpdateFormLayout")
	want := `[{"type":"ROW","fields":[{"type":"NUMBER","code":"amount","size":{"width":"193"}}]},` +
		`{"type":"GROUP","code":"grp","layout":[]}]`
	if got := marshal(t, call.Layout); got != want {
		t.Fatalf("layout payload mismatch:\nwant %s\ngot  %s", want, got)
	}
}

func TestUpdateFormLayoutRejectsInvalidTreeWithoutRemoteCalls(t *testing.T) {
	client := seededClient(t)
	orch := orchestrator.New(orchestrator.WithClient(client))

	nodes := []layout.Node{&layout.Row{Fields: []layout.Element{{
		Type: "NUMBER",
		Code: "amount",
		Size: &layout.Size{Width: layout.Dim("200px")},
	}}}}
	_, err := orch.UpdateFormLayout(testsupport.Context(), orchestrator.LayoutRequest{App: "1", Layout: nodes})
	if !errors.Is(err, diag.ErrInvalidFieldSize) {
		t.Fatalf("expected InvalidFieldSize, got %v", err)
	}
	if len(client.Calls()) != 0 {
		t.Fatalf("expected no remote calls, got %v", client.Methods())
	}
}

func TestOrchestratorLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	orch := orchestrator.New(
		orchestrator.WithClient(seededClient(t)),
		orchestrator.WithLogger(logger),
	)

	props := testsupport.MustProperties(t, `{"title": {"type": "SINGLE_LINE_TEXT", "label": "Dup"}}`)
	if _, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props}); err != nil {
		t.Fatalf("add fields: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &entry); err != nil {
		t.Fatalf("decode log entry: %v\n%s", err, buf.String())
	}
	if entry["level"] != "WARN" || entry["code"] != string(diag.CodeFieldCodeRenamed) || entry["op"] != "add_fields" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestOrchestratorRequiresClientAndApp(t *testing.T) {
	props := testsupport.MustProperties(t, `{"a": {"type": "NUMBER"}}`)

	_, err := orchestrator.New().AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props})
	if err == nil || !strings.Contains(err.Error(), "client") {
		t.Fatalf("expected missing client error, got %v", err)
	}

	orch := orchestrator.New(orchestrator.WithClient(testsupport.NewFakeClient()))
	if _, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "abc", Properties: props}); err == nil {
		t.Fatalf("expected invalid app id to be rejected")
	}
	if _, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1"}); !errors.Is(err, diag.ErrInvalidProperties) {
		t.Fatalf("expected empty properties to be rejected, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := orch.AddFields(ctx, orchestrator.FieldsRequest{App: "1", Properties: props}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestAddFieldsAppliesTransformer(t *testing.T) {
	client := seededClient(t)
	transformer := orchestrator.TransformerFunc(func(_ context.Context, props *fields.Properties) error {
		def, _ := props.Get("note")
		def.Code = "note"
		def.Label = "Patched"
		return nil
	})
	orch := orchestrator.New(orchestrator.WithClient(client), orchestrator.WithTransformer(transformer))

	props := testsupport.MustProperties(t, `{"note": {"type": "MULTI_LINE_TEXT", "label": "Note"}}`)
	if _, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props}); err != nil {
		t.Fatalf("add fields: %v", err)
	}

	call, _ := client.LastCall("AddFormFields")
	def, _ := call.Properties.Get("note")
	if def.Label != "Patched" {
		t.Fatalf("transformer mutation missing: %+v", def)
	}
	original, _ := props.Get("note")
	if original.Label != "Note" {
		t.Fatalf("caller properties must not be mutated, got %q", original.Label)
	}
}

func TestTransformerErrorAborts(t *testing.T) {
	client := seededClient(t)
	transformer := orchestrator.TransformerFunc(func(context.Context, *fields.Properties) error {
		return errors.New("boom")
	})
	orch := orchestrator.New(orchestrator.WithClient(client), orchestrator.WithTransformer(transformer))

	props := testsupport.MustProperties(t, `{"note": {"type": "MULTI_LINE_TEXT"}}`)
	_, err := orch.AddFields(testsupport.Context(), orchestrator.FieldsRequest{App: "1", Properties: props})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected transformer error, got %v", err)
	}
	if len(client.Calls()) != 0 {
		t.Fatalf("expected no remote calls, got %v", client.Methods())
	}
}
