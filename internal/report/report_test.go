package report_test

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-kintone-forms/internal/report"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
	"github.com/goliatone/go-kintone-forms/pkg/testsupport"
)

func render(t *testing.T, rep report.Report, opts ...report.Option) string {
	t.Helper()
	renderer, err := report.New(opts...)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	var buf bytes.Buffer
	if err := renderer.Render(&buf, rep); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestRenderer_Golden(t *testing.T) {
	rep := report.Report{Operation: "add-fields", App: "7", Revision: "3"}
	rep.Warn(`field code "title" renamed to "title_1"`)
	rep.Fail(diag.Errorf(diag.CodeInvalidFieldSize, "layout[0].fields[0].size.width", "width must be a decimal string"))
	rep.Fail(&platform.RemoteError{
		Status:  http.StatusBadRequest,
		Code:    platform.CodeInvalidInput,
		Message: "Missing or invalid input.",
		Errors: map[string]platform.ErrorDetail{
			"properties[price].unit": {Messages: []string{"Too long."}},
			"app":                    {Messages: []string{"Required."}},
		},
	})
	rep.Payload = `{"title_1":{"type":"SINGLE_LINE_TEXT"}}` + "\n"

	got := render(t, rep)

	goldenPath := filepath.Join("testdata", "report.golden")
	if testsupport.WriteMaybeGolden(t, goldenPath, []byte(got)) {
		return
	}
	want := testsupport.MustReadGoldenString(t, goldenPath)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderer_EmptyReport(t *testing.T) {
	got := render(t, report.Report{Operation: "validate layout"})
	want := "validate layout\n  no diagnostics\nok: 0 warnings\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderer_RendersTwiceIdentically(t *testing.T) {
	renderer, err := report.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	rep := report.Report{Operation: "deploy", App: "3"}
	rep.Warn("one", "two")

	var first, second bytes.Buffer
	if err := renderer.Render(&first, rep); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := renderer.Render(&second, rep); err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Fatalf("second render differs (-first +second):\n%s", diff)
	}
}

func TestRenderer_ColorsSeverities(t *testing.T) {
	rep := report.Report{Operation: "validate fields"}
	rep.Fail(errors.New("boom"))

	plain := render(t, rep)
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("expected no escape codes without colour, got %q", plain)
	}
	colored := render(t, rep, report.WithColor(true))
	if !strings.Contains(colored, "\x1b[") {
		t.Fatalf("expected escape codes with colour, got %q", colored)
	}
}

func TestRenderer_DoesNotEscapeMarkup(t *testing.T) {
	rep := report.Report{Operation: "validate layout"}
	rep.Warn(`LABEL value "<b>x</b>" was sanitised`)

	got := render(t, rep)
	if !strings.Contains(got, `"<b>x</b>"`) {
		t.Fatalf("expected raw message, got %q", got)
	}
}

func TestRenderer_CustomTemplates(t *testing.T) {
	fsys := fstest.MapFS{
		"report.tpl": {Data: []byte("{% autoescape off %}{{ heading }}: {{ summary }}{% endautoescape %}")},
	}
	got := render(t, report.Report{Operation: "tools"}, report.WithTemplatesFS(fsys))
	if got != "tools: ok: 0 warnings" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestReport_Count(t *testing.T) {
	var rep report.Report
	rep.Warn("a", "b")
	rep.Fail(nil)
	rep.Fail(errors.New("c"))
	if rep.Count(report.SeverityWarning) != 2 || rep.Count(report.SeverityError) != 1 {
		t.Fatalf("unexpected counts in %+v", rep.Entries)
	}
}
