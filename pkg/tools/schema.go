package tools

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var documentYAML []byte

// Document returns the embedded OpenAPI description of the tool surface.
func Document() []byte {
	out := make([]byte, len(documentYAML))
	copy(out, documentYAML)
	return out
}

// Spec pairs a tool's description with the schema of its arguments.
type Spec struct {
	Description string
	Schema      *openapi3.Schema
}

// LoadSpecs parses an OpenAPI document and returns one Spec per POST
// operation, keyed by operationId.
func LoadSpecs(ctx context.Context, data []byte) (map[string]Spec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("tools: openapi document is empty")
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("tools: load openapi document: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("tools: validate openapi document: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, errors.New("tools: openapi document does not contain any paths")
	}

	specs := make(map[string]Spec)
	for path, item := range doc.Paths.Map() {
		if item == nil || item.Post == nil {
			continue
		}
		op := item.Post
		name := normalizeToolName(op.OperationID)
		if name == "" {
			return nil, fmt.Errorf("tools: %s is missing an operationId", path)
		}
		spec := Spec{Description: strings.TrimSpace(op.Summary)}
		if body := op.RequestBody; body != nil && body.Value != nil {
			if media := body.Value.Content.Get("application/json"); media != nil && media.Schema != nil {
				spec.Schema = media.Schema.Value
			}
		}
		specs[name] = spec
	}
	return specs, nil
}

// ArgumentError reports tool arguments that do not match the tool's schema.
type ArgumentError struct {
	Path    string
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Path == "" {
		return "tools: invalid arguments: " + e.Message
	}
	return fmt.Sprintf("tools: invalid arguments at %s: %s", e.Path, e.Message)
}

// StatusCode implements HTTPError.
func (e *ArgumentError) StatusCode() int {
	return http.StatusBadRequest
}

func validateArguments(schema *openapi3.Schema, args json.RawMessage) error {
	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return &ArgumentError{Message: "arguments must be a JSON object"}
	}
	if _, ok := value.(map[string]any); !ok {
		return &ArgumentError{Message: "arguments must be a JSON object"}
	}
	if schema == nil {
		return nil
	}
	err := schema.VisitJSON(value)
	if err == nil {
		return nil
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		return &ArgumentError{
			Path:    strings.Join(schemaErr.JSONPointer(), "."),
			Message: schemaErr.Reason,
		}
	}
	return &ArgumentError{Message: err.Error()}
}
