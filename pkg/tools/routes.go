package tools

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// GuardFunc authorizes a request before a tool is listed or called.
type GuardFunc func(r *http.Request) error

// Options configures the tool HTTP handler.
type Options struct {
	BasePath     string
	RoutePath    string
	MaxBodyBytes int64
	Guard        GuardFunc
	Logger       *slog.Logger
}

// OptionFn mutates Options.
type OptionFn func(*Options)

// DefaultOptions returns the handler defaults.
func DefaultOptions() Options {
	return Options{
		RoutePath:    "/tools",
		MaxBodyBytes: 4 << 20,
	}
}

// NewOptions applies fns over the defaults and clamps invalid values.
func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.RoutePath == "" {
		opts.RoutePath = "/tools"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return opts
}

// WithBasePath mounts the routes under basePath.
func WithBasePath(basePath string) OptionFn {
	return func(o *Options) { o.BasePath = basePath }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(limit int64) OptionFn {
	return func(o *Options) { o.MaxBodyBytes = limit }
}

// WithGuard installs an authorization check.
func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) { o.Guard = guard }
}

// WithLogger sets the logger for failed calls.
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Options) { o.Logger = logger }
}

// Mux is the minimal interface required to register a net/http handler.
// It is satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// MountPath returns the listing path for the tool routes under basePath.
func MountPath(basePath string, fns ...OptionFn) string {
	opts := NewOptions(fns...)
	return mountPath(basePath, opts.RoutePath)
}

// RegisterRoutes registers the tool handler on mux and returns the listing
// path. Calls are served below it at {path}/{name}.
func RegisterRoutes(mux Mux, basePath string, registry *Registry, fns ...OptionFn) (string, error) {
	if mux == nil {
		return "", fmt.Errorf("tools: missing mux")
	}
	if registry == nil {
		return "", fmt.Errorf("tools: missing registry")
	}
	opts := NewOptions(append([]OptionFn{WithBasePath(basePath)}, fns...)...)
	root := mountPath(opts.BasePath, opts.RoutePath)
	handler := HandlerWithOptions(registry, opts)
	mux.Handle(root, handler)
	mux.Handle(root+"/", handler)
	return root, nil
}

func mountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimSpace(routePath)

	if routePath == "" {
		routePath = "/"
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}
	routePath = strings.TrimRight(routePath, "/")
	if routePath == "" {
		routePath = "/"
	}

	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	return basePath + routePath
}
