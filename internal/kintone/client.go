package kintone

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

const (
	headerAPIToken       = "X-Cybozu-API-Token"
	headerAuthorization  = "X-Cybozu-Authorization"
	headerMethodOverride = "X-HTTP-Method-Override"

	pathFields = "/k/v1/preview/app/form/fields.json"
	pathLayout = "/k/v1/preview/app/form/layout.json"
	pathDeploy = "/k/v1/preview/app/deploy.json"

	liveFields = "/k/v1/app/form/fields.json"
	liveLayout = "/k/v1/app/form/layout.json"

	maxErrorBody = 1 << 20
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithAPITokens authenticates with one or more app API tokens.
func WithAPITokens(tokens ...string) Option {
	return func(c *Client) {
		for _, token := range tokens {
			if token = strings.TrimSpace(token); token != "" {
				c.tokens = append(c.tokens, token)
			}
		}
	}
}

// WithPassword authenticates with a login name and password.
func WithPassword(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds each request. Zero leaves requests bounded only by ctx.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLiveReads reads fields and layout from the deployed app instead of the
// preview environment. Writes always target preview.
func WithLiveReads(enabled bool) Option {
	return func(c *Client) {
		c.liveReads = enabled
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the platform's app-settings REST API.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    []string
	username  string
	password  string
	timeout   time.Duration
	liveReads bool
	logger    *slog.Logger
}

var _ platform.Client = (*Client)(nil)

// New constructs a Client for the given base URL, e.g.
// https://example.cybozu.com.
func New(baseURL string, options ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("kintone: base url is required")
	}
	parsed, err := url.Parse(strings.TrimRight(trimmed, "/"))
	if err != nil {
		return nil, fmt.Errorf("kintone: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("kintone: base url %q must include scheme and host", baseURL)
	}

	c := &Client{
		base:   parsed,
		http:   &http.Client{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if len(c.tokens) == 0 && c.username == "" {
		return nil, errors.New("kintone: an API token or username/password is required")
	}
	return c, nil
}

type revisionResponse struct {
	Revision platform.Revision `json:"revision"`
}

// GetFormFields reads the app's field definitions.
func (c *Client) GetFormFields(ctx context.Context, app platform.AppID) (*platform.FieldsSnapshot, error) {
	path := pathFields
	if c.liveReads {
		path = liveFields
	}
	var resp struct {
		Properties json.RawMessage   `json:"properties"`
		Revision   platform.Revision `json:"revision"`
	}
	if err := c.do(ctx, http.MethodGet, path, map[string]any{"app": app}, &resp); err != nil {
		return nil, err
	}
	props, err := fields.DecodeProperties(resp.Properties, "fields.json")
	if err != nil {
		return nil, fmt.Errorf("kintone: decode fields: %w", err)
	}
	return &platform.FieldsSnapshot{Properties: props, Revision: resp.Revision}, nil
}

// GetFormLayout reads the app's form layout.
func (c *Client) GetFormLayout(ctx context.Context, app platform.AppID) (*platform.LayoutSnapshot, error) {
	path := pathLayout
	if c.liveReads {
		path = liveLayout
	}
	var resp struct {
		Layout   json.RawMessage   `json:"layout"`
		Revision platform.Revision `json:"revision"`
	}
	if err := c.do(ctx, http.MethodGet, path, map[string]any{"app": app}, &resp); err != nil {
		return nil, err
	}
	raw, err := ordered.Decode(resp.Layout)
	if err != nil {
		return nil, fmt.Errorf("kintone: decode layout: %w", err)
	}
	nodes, err := layout.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("kintone: decode layout: %w", err)
	}
	return &platform.LayoutSnapshot{Layout: nodes, Revision: resp.Revision}, nil
}

// AddFormFields creates fields in the preview app.
func (c *Client) AddFormFields(ctx context.Context, app platform.AppID, props *fields.Properties, revision platform.Revision) (platform.Revision, error) {
	return c.writeRevision(ctx, http.MethodPost, pathFields, map[string]any{
		"app":        app,
		"properties": props,
		"revision":   revision,
	})
}

// UpdateFormFields patches existing fields in the preview app.
func (c *Client) UpdateFormFields(ctx context.Context, app platform.AppID, props *fields.Properties, revision platform.Revision) (platform.Revision, error) {
	return c.writeRevision(ctx, http.MethodPut, pathFields, map[string]any{
		"app":        app,
		"properties": props,
		"revision":   revision,
	})
}

// DeleteFormFields removes fields from the preview app.
func (c *Client) DeleteFormFields(ctx context.Context, app platform.AppID, codes []string, revision platform.Revision) (platform.Revision, error) {
	return c.writeRevision(ctx, http.MethodDelete, pathFields, map[string]any{
		"app":      app,
		"fields":   codes,
		"revision": revision,
	})
}

// UpdateFormLayout replaces the preview app's layout.
func (c *Client) UpdateFormLayout(ctx context.Context, app platform.AppID, nodes []layout.Node, revision platform.Revision) (platform.Revision, error) {
	if nodes == nil {
		nodes = []layout.Node{}
	}
	return c.writeRevision(ctx, http.MethodPut, pathLayout, map[string]any{
		"app":      app,
		"layout":   nodes,
		"revision": revision,
	})
}

// DeployApps publishes preview settings to the live apps, or discards them
// when revert is set.
func (c *Client) DeployApps(ctx context.Context, targets []platform.DeployTarget, revert bool) error {
	return c.do(ctx, http.MethodPost, pathDeploy, map[string]any{
		"apps":   targets,
		"revert": revert,
	}, nil)
}

// GetDeployStatus reports deployment progress.
func (c *Client) GetDeployStatus(ctx context.Context, apps []platform.AppID) ([]platform.DeployStatus, error) {
	var resp struct {
		Apps []platform.DeployStatus `json:"apps"`
	}
	if err := c.do(ctx, http.MethodGet, pathDeploy, map[string]any{"apps": apps}, &resp); err != nil {
		return nil, err
	}
	return resp.Apps, nil
}

func (c *Client) writeRevision(ctx context.Context, method, path string, payload map[string]any) (platform.Revision, error) {
	var resp revisionResponse
	if err := c.do(ctx, method, path, payload, &resp); err != nil {
		return 0, err
	}
	return resp.Revision, nil
}

// do sends a JSON request. GET and DELETE carry their parameters in a JSON
// body, so they are sent as POST with a method override header.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kintone: encode %s %s: %w", method, path, err)
	}

	wireMethod := method
	if method == http.MethodGet || method == http.MethodDelete {
		wireMethod = http.MethodPost
	}
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(reqCtx, wireMethod, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("kintone: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if wireMethod != method {
		req.Header.Set(headerMethodOverride, method)
	}
	c.authorize(req)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kintone: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.DebugContext(ctx, "kintone request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRemoteError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kintone: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if len(c.tokens) > 0 {
		req.Header.Set(headerAPIToken, strings.Join(c.tokens, ","))
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	req.Header.Set(headerAuthorization, credentials)
}

func decodeRemoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	remote := &platform.RemoteError{Status: resp.StatusCode}
	if err := json.Unmarshal(data, remote); err != nil || (remote.Code == "" && remote.Message == "") {
		remote.Message = strings.TrimSpace(string(data))
		if remote.Message == "" {
			remote.Message = resp.Status
		}
	}
	return remote
}
