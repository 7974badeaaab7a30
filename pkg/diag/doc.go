// Package diag holds the diagnostic values returned by the field and layout
// normalizers. Warnings travel alongside corrected output; fatal problems are
// reported as *Error and abort the operation before any remote call.
package diag
