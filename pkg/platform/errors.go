package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes the platform uses for outcomes callers commonly react to.
const (
	CodeRevisionConflict = "GAIA_CO02"
	CodeAppNotFound      = "GAIA_AP01"
	CodeInvalidInput     = "CB_VA01"
)

// ErrorDetail carries the messages for one offending request path.
type ErrorDetail struct {
	Messages []string `json:"messages"`
}

// RemoteError is an error reported by the platform. It is returned to callers
// as is.
type RemoteError struct {
	Status  int                    `json:"-"`
	Code    string                 `json:"code"`
	ID      string                 `json:"id"`
	Message string                 `json:"message"`
	Errors  map[string]ErrorDetail `json:"errors,omitempty"`
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("kintone")
	if e.Code != "" {
		b.WriteString(" ")
		b.WriteString(e.Code)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.ID != "" {
		fmt.Fprintf(&b, " [id %s]", e.ID)
	}
	return b.String()
}

// IsRevisionConflict reports whether the request used a stale revision.
func (e *RemoteError) IsRevisionConflict() bool {
	return e != nil && e.Code == CodeRevisionConflict
}

// AsRemote extracts a *RemoteError from err.
func AsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote, true
	}
	return nil, false
}

// ErrorMapping splits per-path platform errors into field-level messages keyed
// by field code and form-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// FieldErrors maps the platform's request paths onto field codes. Paths like
// "properties[price].unit" map to "price"; subtable columns map to
// "table.column". Anything else is form-level so messages are not lost.
func (e *RemoteError) FieldErrors() ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	if e == nil || len(e.Errors) == 0 {
		mapping.Fields = nil
		return mapping
	}

	paths := make([]string, 0, len(e.Errors))
	for path := range e.Errors {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, rawPath := range paths {
		messages := normalizeMessages(e.Errors[rawPath].Messages)
		if len(messages) == 0 {
			continue
		}
		code, ok := fieldCodeForPath(rawPath)
		if !ok {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		mapping.Fields[code] = normalizeMessages(append(mapping.Fields[code], messages...))
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func fieldCodeForPath(raw string) (string, bool) {
	segments := parsePathSegments(raw)
	if len(segments) < 2 || segments[0] != "properties" {
		return "", false
	}
	code := segments[1]
	if len(segments) >= 4 && segments[2] == "fields" {
		return code + "." + segments[3], true
	}
	return code, true
}

// parsePathSegments splits "properties[code].options[x].label" into its
// segments. Bracketed segments may contain dots.
func parsePathSegments(path string) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		if segment := strings.TrimSpace(current.String()); segment != "" {
			out = append(out, segment)
		}
		current.Reset()
	}

	depth := 0
	for _, r := range strings.TrimSpace(path) {
		switch {
		case r == '[':
			if depth == 0 {
				flush()
			} else {
				current.WriteRune(r)
			}
			depth++
		case r == ']' && depth > 0:
			depth--
			if depth == 0 {
				flush()
			} else {
				current.WriteRune(r)
			}
		case r == '.' && depth == 0:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return out
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
