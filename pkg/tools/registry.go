package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// HandlerFunc executes a tool with its raw JSON arguments. Arguments have
// already been validated against the tool's schema when it has one.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one callable operation.
type Tool struct {
	Name        string
	Description string
	Schema      *openapi3.Schema
	Handler     HandlerFunc
}

// Info describes a tool for listings.
type Info struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema *openapi3.Schema `json:"inputSchema,omitempty"`
}

// Registry stores tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool by name. Duplicate names return an error.
func (r *Registry) Register(tool Tool) error {
	if tool.Handler == nil {
		return fmt.Errorf("tools: handler is required")
	}
	name := normalizeToolName(tool.Name)
	if name == "" {
		return fmt.Errorf("tools: tool name is required")
	}
	tool.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tools: tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	key := normalizeToolName(name)
	if key == "" {
		return Tool{}, fmt.Errorf("tools: tool name is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[key]
	if !ok {
		return Tool{}, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("tools: tool %q not found", key)}
	}
	return tool, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	key := normalizeToolName(name)
	if key == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[key]
	return ok
}

// List returns a sorted list of tool names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns every tool's listing entry sorted by name.
func (r *Registry) Describe() []Info {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		out = append(out, Info{Name: tool.Name, Description: tool.Description, InputSchema: tool.Schema})
	}
	return out
}

// Call validates args against the tool's schema and runs it. Empty args are
// treated as an empty object.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage("{}")
	}
	if err := validateArguments(tool.Schema, args); err != nil {
		return nil, err
	}
	return tool.Handler(ctx, args)
}

func normalizeToolName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
