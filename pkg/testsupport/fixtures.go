package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
)

// MustProperties decodes a JSON property map, failing the test on error.
func MustProperties(t *testing.T, data string) *fields.Properties {
	t.Helper()

	props, err := fields.DecodeProperties([]byte(data), "fixture")
	if err != nil {
		t.Fatalf("decode properties: %v", err)
	}
	return props
}

// MustLayout decodes a JSON layout array (or {"layout": [...]}) document.
func MustLayout(t *testing.T, data string) []layout.Node {
	t.Helper()

	nodes, err := layout.Decode([]byte(data), "fixture")
	if err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	return nodes
}

// LoadProperties reads a JSON or YAML property fixture, returning an error for
// callers managing setup outside of *testing.T.
func LoadProperties(path string) (*fields.Properties, error) {
	if path == "" {
		return nil, errors.New("testsupport: properties path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read properties: %w", err)
	}
	props, err := fields.DecodeProperties(data, path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: decode properties: %w", err)
	}
	return props, nil
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// CompareJSON compares two JSON documents structurally and returns a diff
// string when they differ.
func CompareJSON(t *testing.T, want, got []byte) string {
	t.Helper()

	var wantValue, gotValue any
	if err := json.Unmarshal(want, &wantValue); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	if err := json.Unmarshal(got, &gotValue); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	return cmp.Diff(wantValue, gotValue)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// MustReadGoldenString reads a golden file and returns its string content.
func MustReadGoldenString(t *testing.T, path string) string {
	t.Helper()
	return string(MustReadGolden(t, path))
}
