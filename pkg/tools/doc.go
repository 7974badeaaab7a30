// Package tools exposes the form operations as named tools. Each tool's
// arguments are described by an embedded OpenAPI document and validated
// against it before the tool runs; Handler serves the registry over HTTP.
package tools
