package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
	"github.com/goliatone/go-kintone-forms/pkg/testsupport"
	"github.com/goliatone/go-kintone-forms/pkg/tools"
)

type errorPayload struct {
	Error struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Path    string              `json:"path"`
		Fields  map[string][]string `json:"fields"`
	} `json:"error"`
}

func newHandler(t *testing.T, client platform.Client) http.Handler {
	t.Helper()
	registry, err := tools.NewDefaultRegistry(testsupport.Context(), orchestrator.New(orchestrator.WithClient(client)))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return tools.Handler(registry, tools.WithBasePath("/api"))
}

func seeded(t *testing.T) *testsupport.FakeClient {
	t.Helper()
	return testsupport.NewFakeClient().Seed("7",
		testsupport.MustProperties(t, `{"title": {"type": "SINGLE_LINE_TEXT", "code": "title", "label": "Title"}}`),
		testsupport.MustLayout(t, `[{"type": "ROW", "fields": [{"type": "SINGLE_LINE_TEXT", "code": "title"}]}]`),
		2,
	)
}

func post(t *testing.T, h http.Handler, tool, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/tools/"+tool, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func decode(t *testing.T, res *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandler_ListsEveryTool(t *testing.T) {
	h := newHandler(t, seeded(t))

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}
	var payload struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	decode(t, res, &payload)

	names := make([]string, 0, len(payload.Tools))
	for _, tool := range payload.Tools {
		names = append(names, tool.Name)
		if tool.Description == "" || tool.InputSchema == nil {
			t.Fatalf("tool %s is missing its description or schema", tool.Name)
		}
	}
	want := []string{
		"add_fields", "delete_form_fields", "deploy_app", "describe_form",
		"get_deploy_status", "get_form_fields", "get_form_layout",
		"update_form_fields", "update_form_layout", "validate_fields", "validate_layout",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("tool names mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_AddFieldsReturnsRevisionAndWarnings(t *testing.T) {
	h := newHandler(t, seeded(t))

	res := post(t, h, "add_fields", `{
		"app": 7,
		"properties": {"title": {"type": "SINGLE_LINE_TEXT", "label": "title"}}
	}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}
	var payload struct {
		Revision string   `json:"revision"`
		Warnings []string `json:"warnings"`
	}
	decode(t, res, &payload)
	if payload.Revision != "3" {
		t.Fatalf("expected revision 3, got %q", payload.Revision)
	}
	if len(payload.Warnings) != 1 || !strings.Contains(payload.Warnings[0], "title_1") {
		t.Fatalf("expected a rename warning, got %v", payload.Warnings)
	}
}

func TestHandler_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		tool   string
		body   string
		status int
		code   string
		path   string
	}{
		{
			name:   "missing required argument",
			tool:   "add_fields",
			body:   `{"properties": {"a": {"type": "NUMBER"}}}`,
			status: http.StatusBadRequest,
			code:   "InvalidArguments",
		},
		{
			name:   "app id of the wrong shape",
			tool:   "get_form_fields",
			body:   `{"app": "twelve"}`,
			status: http.StatusBadRequest,
			code:   "InvalidArguments",
			path:   "app",
		},
		{
			name:   "arguments that are not an object",
			tool:   "get_form_fields",
			body:   `[1, 2]`,
			status: http.StatusBadRequest,
			code:   "InvalidArguments",
		},
		{
			name:   "fatal normalization error",
			tool:   "add_fields",
			body:   `{"app": "7", "properties": {"link": {"type": "LINK", "label": "link", "protocol": "FTP"}}}`,
			status: http.StatusUnprocessableEntity,
			code:   "InvalidLinkProtocol",
			path:   "link.protocol",
		},
		{
			name:   "invalid layout",
			tool:   "update_form_layout",
			body:   `{"app": "7", "layout": [{"type": "ROW", "fields": [{"type": "GROUP", "code": "g"}]}]}`,
			status: http.StatusUnprocessableEntity,
			code:   "InvalidLayoutNode",
			path:   "layout[0].fields[0]",
		},
		{
			name:   "unknown app passes the platform status through",
			tool:   "describe_form",
			body:   `{"app": "99"}`,
			status: http.StatusNotFound,
			code:   platform.CodeAppNotFound,
		},
		{
			name:   "unknown tool",
			tool:   "drop_database",
			body:   `{}`,
			status: http.StatusNotFound,
			code:   "Not Found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := seeded(t)
			res := post(t, newHandler(t, client), tc.tool, tc.body)
			if res.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, res.StatusCode)
			}
			var payload errorPayload
			decode(t, res, &payload)
			if payload.Error.Code != tc.code {
				t.Fatalf("expected code %q, got %+v", tc.code, payload.Error)
			}
			if tc.path != "" && payload.Error.Path != tc.path {
				t.Fatalf("expected path %q, got %q", tc.path, payload.Error.Path)
			}
			for _, method := range client.Methods() {
				if strings.HasPrefix(method, "Add") || strings.HasPrefix(method, "Update") {
					t.Fatalf("no write expected, got %v", client.Methods())
				}
			}
		})
	}
}

func TestHandler_RemoteFieldErrorsAreMapped(t *testing.T) {
	client := seeded(t).FailWith("UpdateFormFields", &platform.RemoteError{
		Status:  http.StatusBadRequest,
		Code:    platform.CodeInvalidInput,
		Message: "Missing or invalid input.",
		Errors: map[string]platform.ErrorDetail{
			"properties[title].label": {Messages: []string{"Required."}},
		},
	})
	res := post(t, newHandler(t, client), "update_form_fields", `{"app": "7", "properties": {"title": {"label": "T"}}, "revision": null}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.StatusCode)
	}
	var payload errorPayload
	decode(t, res, &payload)
	if diff := cmp.Diff(map[string][]string{"title": {"Required."}}, payload.Error.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_GuardRejects(t *testing.T) {
	registry, err := tools.NewDefaultRegistry(testsupport.Context(), orchestrator.New(orchestrator.WithClient(seeded(t))))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	h := tools.Handler(registry, tools.WithGuard(func(*http.Request) error {
		return tools.StatusError{Code: http.StatusUnauthorized, Err: errors.New("no token")}
	}))

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestHandler_ValidateLayoutIsOffline(t *testing.T) {
	client := seeded(t)
	res := post(t, newHandler(t, client), "validate_layout", `{
		"layout": [{"type": "ROW", "fields": [{"type": "NUMBER", "code": "n", "size": {"width": 120}}]}],
		"existing": {"n": {"type": "NUMBER", "code": "n", "label": "N"}}
	}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}
	var payload struct {
		Layout   []map[string]any `json:"layout"`
		Warnings []string         `json:"warnings"`
	}
	decode(t, res, &payload)
	fields := payload.Layout[0]["fields"].([]any)
	size := fields[0].(map[string]any)["size"].(map[string]any)
	if size["width"] != "120" {
		t.Fatalf("expected width coerced to a string, got %#v", size["width"])
	}
	if len(client.Calls()) != 0 {
		t.Fatalf("validate_layout must not call the platform, got %v", client.Methods())
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	registry := tools.NewRegistry()
	tool := tools.Tool{Name: "Echo", Handler: func(_ context.Context, raw json.RawMessage) (any, error) { return raw, nil }}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(tool); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if !registry.Has("echo") {
		t.Fatalf("names are case-insensitive")
	}
	if err := registry.Register(tools.Tool{Name: "nohandler"}); err == nil {
		t.Fatalf("expected a missing handler to be rejected")
	}
}
