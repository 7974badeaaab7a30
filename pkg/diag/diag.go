package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Code identifies the rule that produced a diagnostic or fatal error.
type Code string

// Warning codes. Each accompanies an auto-correction unless noted.
const (
	CodeFieldCodeRenamed      Code = "FieldCodeRenamed"
	CodeLabelDefaulted        Code = "LabelDefaulted"
	CodeOptionRekeyed         Code = "OptionRekeyed"
	CodeDefaultValueRemapped  Code = "DefaultValueRemapped"
	CodeUnitPositionInferred  Code = "UnitPositionInferred"
	CodeWidthAssigned         Code = "WidthAssigned"
	CodeSizeCoerced           Code = "SizeCoerced"
	CodeLabelSanitized        Code = "LabelSanitized"
	CodeFieldInsertedInLayout Code = "FieldInsertedInLayout"
	// CodeFieldMissingFromLayout is diagnostic-only; nothing is corrected.
	CodeFieldMissingFromLayout Code = "FieldMissingFromLayout"
)

// Fatal codes.
const (
	CodeInvalidProperties     Code = "InvalidProperties"
	CodeInvalidFieldCode      Code = "InvalidFieldCode"
	CodeMissingFieldCode      Code = "MissingFieldCode"
	CodeMissingFieldType      Code = "MissingFieldType"
	CodeUnknownFieldType      Code = "UnknownFieldType"
	CodeUnknownField          Code = "UnknownField"
	CodeMissingOptions        Code = "MissingOptions"
	CodeOptionLabelCollision  Code = "OptionLabelCollision"
	CodeInvalidOptionLabel    Code = "InvalidOptionLabel"
	CodeInvalidOptionIndex    Code = "InvalidOptionIndex"
	CodeMissingExpression     Code = "MissingExpression"
	CodeInvalidLinkProtocol   Code = "InvalidLinkProtocol"
	CodeInvalidLookup         Code = "InvalidLookup"
	CodeInvalidReferenceTable Code = "InvalidReferenceTable"
	CodeInvalidSubtable       Code = "InvalidSubtable"
	CodeIllegalSubtableField  Code = "IllegalSubtableField"
	CodeInvalidLayoutNode     Code = "InvalidLayoutNode"
	CodeInvalidFieldSize      Code = "InvalidFieldSize"
)

// Diagnostic is one observation produced during normalization. Context names
// the field code or layout path the message refers to.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Context  string   `json:"context,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Context == "" {
		return d.Message
	}
	return d.Context + ": " + d.Message
}

// List accumulates diagnostics in generation order.
type List []Diagnostic

// Warn appends a warning.
func (l *List) Warn(code Code, context, format string, args ...any) {
	*l = append(*l, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Context:  context,
	})
}

// Append concatenates other onto the list.
func (l *List) Append(other List) {
	*l = append(*l, other...)
}

// Messages renders each diagnostic as a single line, preserving order.
// Returns nil for an empty list so JSON envelopes can omit the field.
func (l List) Messages() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, d := range l {
		out = append(out, d.String())
	}
	return out
}

// HasCode reports whether any diagnostic carries code.
func (l List) HasCode(code Code) bool {
	for _, d := range l {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Filter returns the diagnostics carrying code.
func (l List) Filter(code Code) List {
	var out List
	for _, d := range l {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// JoinPath appends segments to a dotted/bracketed diagnostic path.
func JoinPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if strings.HasPrefix(segment, "[") || b.Len() == 0 {
			b.WriteString(segment)
			continue
		}
		b.WriteByte('.')
		b.WriteString(segment)
	}
	return b.String()
}
