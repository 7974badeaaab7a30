package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithClient injects the remote platform client.
func WithClient(client platform.Client) Option {
	return func(o *Orchestrator) {
		o.client = client
	}
}

// WithNormalizer injects a custom field normalizer.
func WithNormalizer(normalizer *fields.Normalizer) Option {
	return func(o *Orchestrator) {
		o.normalizer = normalizer
	}
}

// WithCorrector injects a custom layout corrector.
func WithCorrector(corrector *layout.Corrector) Option {
	return func(o *Orchestrator) {
		o.corrector = corrector
	}
}

// WithLogger sets the logger that receives diagnostics and remote call traces.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTransformer registers a Transformer that rewrites submitted properties
// before normalization.
func WithTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// Orchestrator runs the mutating form operations: it reads a fresh snapshot,
// normalizes the request against it, and submits the corrected payload. Fatal
// normalization errors abort before any write; platform errors are returned
// unchanged.
type Orchestrator struct {
	client      platform.Client
	normalizer  *fields.Normalizer
	corrector   *layout.Corrector
	logger      *slog.Logger
	transformer Transformer
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

func (o *Orchestrator) applyDefaults() {
	if o.normalizer == nil {
		o.normalizer = fields.NewNormalizer()
	}
	if o.corrector == nil {
		o.corrector = layout.NewCorrector()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// FieldsRequest carries properties for an add or update. A zero Revision
// means latest.
type FieldsRequest struct {
	App        platform.AppID
	Properties *fields.Properties
	Revision   platform.Revision
}

// LayoutRequest carries a replacement layout.
type LayoutRequest struct {
	App      platform.AppID
	Layout   []layout.Node
	Revision platform.Revision
}

// Result is returned by every mutating operation. Warnings lists every
// diagnostic produced during normalization in generation order.
type Result struct {
	Revision platform.Revision `json:"revision"`
	Warnings []string          `json:"warnings,omitempty"`
}

// AddFields creates new fields after resolving codes against the app's
// current fields and repairing what can be repaired safely.
func (o *Orchestrator) AddFields(ctx context.Context, req FieldsRequest) (*Result, error) {
	props, err := o.prepareFields(ctx, req)
	if err != nil {
		return nil, err
	}
	// Structural errors do not depend on the snapshot; reject them before
	// touching the platform.
	if _, _, err := o.normalizer.Normalize(props, nil); err != nil {
		return nil, err
	}
	snapshot, err := o.fieldsSnapshot(ctx, "add_fields", req.App)
	if err != nil {
		return nil, err
	}
	normalized, diags, err := o.normalizer.Normalize(props, snapshot.Properties)
	if err != nil {
		return nil, err
	}
	o.logDiagnostics(ctx, "add_fields", req.App, diags)

	revision, err := o.client.AddFormFields(ctx, req.App, normalized, revisionOrLatest(req.Revision))
	if err != nil {
		return nil, o.remoteFailure(ctx, "add_fields", req.App, err)
	}
	return &Result{Revision: revision, Warnings: diags.Messages()}, nil
}

// UpdateFormFields patches existing fields. Every key must name a field that
// already exists on the app.
func (o *Orchestrator) UpdateFormFields(ctx context.Context, req FieldsRequest) (*Result, error) {
	props, err := o.prepareFields(ctx, req)
	if err != nil {
		return nil, err
	}
	snapshot, err := o.fieldsSnapshot(ctx, "update_form_fields", req.App)
	if err != nil {
		return nil, err
	}
	normalized, diags, err := o.normalizer.NormalizeUpdate(props, snapshot.Properties)
	if err != nil {
		return nil, err
	}
	o.logDiagnostics(ctx, "update_form_fields", req.App, diags)

	revision, err := o.client.UpdateFormFields(ctx, req.App, normalized, revisionOrLatest(req.Revision))
	if err != nil {
		return nil, o.remoteFailure(ctx, "update_form_fields", req.App, err)
	}
	return &Result{Revision: revision, Warnings: diags.Messages()}, nil
}

// UpdateFormLayout validates and corrects a layout against the app's fields
// and replaces the app's layout with it.
func (o *Orchestrator) UpdateFormLayout(ctx context.Context, req LayoutRequest) (*Result, error) {
	if err := o.ready(ctx, req.App); err != nil {
		return nil, err
	}
	if err := layout.Validate(req.Layout); err != nil {
		return nil, err
	}
	snapshot, err := o.fieldsSnapshot(ctx, "update_form_layout", req.App)
	if err != nil {
		return nil, err
	}
	corrected, diags, err := o.corrector.Correct(req.Layout, layout.ExistingFromProperties(snapshot.Properties))
	if err != nil {
		return nil, err
	}
	o.logDiagnostics(ctx, "update_form_layout", req.App, diags)

	revision, err := o.client.UpdateFormLayout(ctx, req.App, corrected, revisionOrLatest(req.Revision))
	if err != nil {
		return nil, o.remoteFailure(ctx, "update_form_layout", req.App, err)
	}
	return &Result{Revision: revision, Warnings: diags.Messages()}, nil
}

func (o *Orchestrator) prepareFields(ctx context.Context, req FieldsRequest) (*fields.Properties, error) {
	if err := o.ready(ctx, req.App); err != nil {
		return nil, err
	}
	if req.Properties == nil || req.Properties.Len() == 0 {
		return nil, diag.Errorf(diag.CodeInvalidProperties, "properties", "at least one field is required")
	}
	return o.transform(ctx, req.Properties)
}

// fieldsSnapshot reads the app's fields. Snapshots are never cached: each
// operation sees the platform's current state.
func (o *Orchestrator) fieldsSnapshot(ctx context.Context, op string, app platform.AppID) (*platform.FieldsSnapshot, error) {
	snapshot, err := o.client.GetFormFields(ctx, app)
	if err != nil {
		return nil, o.remoteFailure(ctx, op, app, err)
	}
	if snapshot == nil {
		return &platform.FieldsSnapshot{Properties: fields.NewProperties(), Revision: platform.LatestRevision}, nil
	}
	o.logger.DebugContext(ctx, "fields snapshot",
		slog.String("op", op),
		slog.String("app", string(app)),
		slog.Int("fields", snapshot.Properties.Len()),
		slog.String("revision", snapshot.Revision.String()),
	)
	return snapshot, nil
}

func (o *Orchestrator) transform(ctx context.Context, props *fields.Properties) (*fields.Properties, error) {
	if o.transformer == nil {
		return props, nil
	}
	clone := props.Clone()
	if err := o.transformer.Transform(ctx, clone); err != nil {
		return nil, fmt.Errorf("orchestrator: transform properties: %w", err)
	}
	return clone, nil
}

func (o *Orchestrator) ready(ctx context.Context, app platform.AppID) error {
	if ctx == nil {
		return errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.client == nil {
		return errors.New("orchestrator: platform client is not configured")
	}
	if err := app.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// remoteFailure logs err and returns it untouched so callers can inspect
// platform error codes.
func (o *Orchestrator) remoteFailure(ctx context.Context, op string, app platform.AppID, err error) error {
	attrs := []any{slog.String("op", op), slog.String("app", string(app))}
	if remote, ok := platform.AsRemote(err); ok {
		attrs = append(attrs, slog.String("code", remote.Code), slog.Int("status", remote.Status))
	}
	o.logger.ErrorContext(ctx, err.Error(), attrs...)
	return err
}

func (o *Orchestrator) logDiagnostics(ctx context.Context, op string, app platform.AppID, diags diag.List) {
	for _, d := range diags {
		o.logger.WarnContext(ctx, d.Message,
			slog.String("op", op),
			slog.String("app", string(app)),
			slog.String("code", string(d.Code)),
			slog.String("context", d.Context),
		)
	}
}

func revisionOrLatest(revision platform.Revision) platform.Revision {
	if revision == 0 {
		return platform.LatestRevision
	}
	return revision
}
