package diag

import "fmt"

// Error is a fatal normalization failure. It names the offending field or
// layout path so callers can report a single descriptive error.
type Error struct {
	Code    Code   `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Errorf builds a fatal error for path.
func Errorf(code Code, path, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

// Is matches errors carrying the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// Diagnostic converts the error into its error-severity diagnostic form.
func (e *Error) Diagnostic() Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: e.Code, Message: e.Message, Context: e.Path}
}

var (
	ErrInvalidProperties     = &Error{Code: CodeInvalidProperties}
	ErrInvalidFieldCode      = &Error{Code: CodeInvalidFieldCode}
	ErrMissingFieldCode      = &Error{Code: CodeMissingFieldCode}
	ErrMissingFieldType      = &Error{Code: CodeMissingFieldType}
	ErrUnknownFieldType      = &Error{Code: CodeUnknownFieldType}
	ErrUnknownField          = &Error{Code: CodeUnknownField}
	ErrMissingOptions        = &Error{Code: CodeMissingOptions}
	ErrOptionLabelCollision  = &Error{Code: CodeOptionLabelCollision}
	ErrInvalidOptionLabel    = &Error{Code: CodeInvalidOptionLabel}
	ErrInvalidOptionIndex    = &Error{Code: CodeInvalidOptionIndex}
	ErrMissingExpression     = &Error{Code: CodeMissingExpression}
	ErrInvalidLinkProtocol   = &Error{Code: CodeInvalidLinkProtocol}
	ErrInvalidLookup         = &Error{Code: CodeInvalidLookup}
	ErrInvalidReferenceTable = &Error{Code: CodeInvalidReferenceTable}
	ErrInvalidSubtable       = &Error{Code: CodeInvalidSubtable}
	ErrIllegalSubtableField  = &Error{Code: CodeIllegalSubtableField}
	ErrInvalidLayoutNode     = &Error{Code: CodeInvalidLayoutNode}
	ErrInvalidFieldSize      = &Error{Code: CodeInvalidFieldSize}
)
