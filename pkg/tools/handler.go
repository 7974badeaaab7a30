package tools

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

type listResponse struct {
	Tools []Info `json:"tools"`
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Path    string              `json:"path,omitempty"`
	ID      string              `json:"id,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Form    []string            `json:"form,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// Handler builds the tool HTTP surface for registry with default options plus
// any overrides.
func Handler(registry *Registry, fns ...OptionFn) http.Handler {
	return HandlerWithOptions(registry, NewOptions(fns...))
}

// HandlerWithOptions serves GET {base}/tools (listing) and
// POST {base}/tools/{name} (call) for registry.
func HandlerWithOptions(registry *Registry, opts Options) http.Handler {
	opts = NewOptions(func(o *Options) { *o = opts })
	if registry == nil {
		registry = NewRegistry()
	}
	root := mountPath(opts.BasePath, opts.RoutePath)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+root, func(w http.ResponseWriter, r *http.Request) {
		if !guard(w, r, opts) {
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Tools: registry.Describe()})
	})
	mux.HandleFunc("POST "+root+"/{name}", func(w http.ResponseWriter, r *http.Request) {
		if !guard(w, r, opts) {
			return
		}
		name := r.PathValue("name")
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes))
		if err != nil {
			writeError(w, r, opts.Logger, name, StatusError{Code: http.StatusRequestEntityTooLarge, Err: err})
			return
		}
		result, err := registry.Call(r.Context(), name, body)
		if err != nil {
			writeError(w, r, opts.Logger, name, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})
	return mux
}

func guard(w http.ResponseWriter, r *http.Request, opts Options) bool {
	if opts.Guard == nil {
		return true
	}
	err := opts.Guard(r)
	if err == nil {
		return true
	}
	code := http.StatusForbidden
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		if status := httpErr.StatusCode(); status > 0 {
			code = status
		}
	}
	http.Error(w, http.StatusText(code), code)
	return false
}

// StatusFor maps an error returned by a tool onto an HTTP status: fatal
// normalization errors are 422, argument errors 400, platform errors keep the
// platform's status and anything else is 500.
func StatusFor(err error) int {
	var derr *diag.Error
	if errors.As(err, &derr) {
		return http.StatusUnprocessableEntity
	}
	if remote, ok := platform.AsRemote(err); ok && remote.Status > 0 {
		return remote.Status
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		return httpErr.StatusCode()
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, tool string, err error) {
	status := StatusFor(err)
	body := errorBody{Code: http.StatusText(status), Message: err.Error()}

	var derr *diag.Error
	var argErr *ArgumentError
	switch {
	case errors.As(err, &derr):
		body.Code = string(derr.Code)
		body.Path = derr.Path
		body.Message = derr.Message
	case errors.As(err, &argErr):
		body.Code = "InvalidArguments"
		body.Path = argErr.Path
		body.Message = argErr.Message
	default:
		if remote, ok := platform.AsRemote(err); ok {
			mapping := remote.FieldErrors()
			body.Code = remote.Code
			body.Message = remote.Message
			body.ID = remote.ID
			body.Fields = mapping.Fields
			body.Form = mapping.Form
		}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "tool call failed",
		slog.String("tool", tool),
		slog.Int("status", status),
		slog.String("code", body.Code),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(payload)
}
