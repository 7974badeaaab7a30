// Package orchestrator wires the platform client, field normalizer and layout
// corrector into the operations exposed to tool callers. Every mutating
// operation reads a fresh field snapshot, normalizes against it, and submits
// the corrected payload; diagnostics are logged and returned as warnings.
// Platform errors are returned as-is so callers can inspect their codes.
package orchestrator
