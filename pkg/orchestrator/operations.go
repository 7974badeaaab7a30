package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

// GetFormFields returns the app's current fields.
func (o *Orchestrator) GetFormFields(ctx context.Context, app platform.AppID) (*platform.FieldsSnapshot, error) {
	if err := o.ready(ctx, app); err != nil {
		return nil, err
	}
	snapshot, err := o.client.GetFormFields(ctx, app)
	if err != nil {
		return nil, o.remoteFailure(ctx, "get_form_fields", app, err)
	}
	return snapshot, nil
}

// GetFormLayout returns the app's current layout.
func (o *Orchestrator) GetFormLayout(ctx context.Context, app platform.AppID) (*platform.LayoutSnapshot, error) {
	if err := o.ready(ctx, app); err != nil {
		return nil, err
	}
	snapshot, err := o.client.GetFormLayout(ctx, app)
	if err != nil {
		return nil, o.remoteFailure(ctx, "get_form_layout", app, err)
	}
	return snapshot, nil
}

// FormDescription bundles an app's fields and layout together with the
// layout diagnostics computed between them.
type FormDescription struct {
	App      platform.AppID           `json:"app"`
	Fields   *platform.FieldsSnapshot `json:"fields"`
	Layout   *platform.LayoutSnapshot `json:"layout"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// DescribeForm reads fields and layout concurrently and reports fields that
// are defined but not placed.
func (o *Orchestrator) DescribeForm(ctx context.Context, app platform.AppID) (*FormDescription, error) {
	if err := o.ready(ctx, app); err != nil {
		return nil, err
	}

	var (
		fieldsSnapshot *platform.FieldsSnapshot
		layoutSnapshot *platform.LayoutSnapshot
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		snapshot, err := o.client.GetFormFields(groupCtx, app)
		if err != nil {
			return err
		}
		fieldsSnapshot = snapshot
		return nil
	})
	group.Go(func() error {
		snapshot, err := o.client.GetFormLayout(groupCtx, app)
		if err != nil {
			return err
		}
		layoutSnapshot = snapshot
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, o.remoteFailure(ctx, "describe_form", app, err)
	}

	out := &FormDescription{App: app, Fields: fieldsSnapshot, Layout: layoutSnapshot}
	if fieldsSnapshot == nil || layoutSnapshot == nil {
		return out, nil
	}
	// Only the placement diagnostics are kept; the snapshot layout is returned as fetched.
	_, diags, err := o.corrector.Correct(layoutSnapshot.Layout, layout.ExistingFromProperties(fieldsSnapshot.Properties))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: describe layout: %w", err)
	}
	placement := append(diags.Filter(diag.CodeFieldMissingFromLayout), diags.Filter(diag.CodeFieldInsertedInLayout)...)
	out.Warnings = placement.Messages()
	return out, nil
}

// DeleteRequest names the fields to remove.
type DeleteRequest struct {
	App      platform.AppID
	Codes    []string
	Revision platform.Revision
}

// DeleteFormFields removes fields. Every code must exist on the app; nothing
// is deleted when one does not.
func (o *Orchestrator) DeleteFormFields(ctx context.Context, req DeleteRequest) (*Result, error) {
	if err := o.ready(ctx, req.App); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(req.Codes))
	seen := make(map[string]struct{}, len(req.Codes))
	for _, code := range req.Codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, diag.Errorf(diag.CodeInvalidProperties, "fields", "at least one field code is required")
	}

	snapshot, err := o.fieldsSnapshot(ctx, "delete_form_fields", req.App)
	if err != nil {
		return nil, err
	}
	for idx, code := range codes {
		def, ok := snapshot.Properties.Get(code)
		if !ok {
			return nil, diag.Errorf(diag.CodeUnknownField, diag.JoinPath("fields", fmt.Sprintf("[%d]", idx)),
				"field %q does not exist on the app", code)
		}
		if def != nil && def.Type.IsSystem() {
			return nil, diag.Errorf(diag.CodeInvalidProperties, diag.JoinPath("fields", fmt.Sprintf("[%d]", idx)),
				"system field %q cannot be deleted", code)
		}
	}

	revision, err := o.client.DeleteFormFields(ctx, req.App, codes, revisionOrLatest(req.Revision))
	if err != nil {
		return nil, o.remoteFailure(ctx, "delete_form_fields", req.App, err)
	}
	return &Result{Revision: revision}, nil
}

// DeployApp publishes the app's preview settings, or discards them when
// revert is set.
func (o *Orchestrator) DeployApp(ctx context.Context, app platform.AppID, revision platform.Revision, revert bool) error {
	if err := o.ready(ctx, app); err != nil {
		return err
	}
	target := platform.DeployTarget{App: app}
	if revision != 0 {
		target.Revision = &revision
	}
	if err := o.client.DeployApps(ctx, []platform.DeployTarget{target}, revert); err != nil {
		return o.remoteFailure(ctx, "deploy_app", app, err)
	}
	return nil
}

// GetDeployStatus reports deployment progress for the given apps.
func (o *Orchestrator) GetDeployStatus(ctx context.Context, apps []platform.AppID) ([]platform.DeployStatus, error) {
	if len(apps) == 0 {
		return nil, errors.New("orchestrator: at least one app is required")
	}
	for _, app := range apps {
		if err := o.ready(ctx, app); err != nil {
			return nil, err
		}
	}
	statuses, err := o.client.GetDeployStatus(ctx, apps)
	if err != nil {
		return nil, o.remoteFailure(ctx, "get_deploy_status", apps[0], err)
	}
	return statuses, nil
}

// Preview is the outcome of a dry run: the payload that would be submitted
// and the warnings produced while building it.
type Preview struct {
	Properties *fields.Properties `json:"properties,omitempty"`
	Layout     []layout.Node      `json:"layout,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// ValidateFields normalizes properties without contacting the platform. A nil
// existing snapshot means the app has no fields yet.
func (o *Orchestrator) ValidateFields(ctx context.Context, props, existing *fields.Properties, mode fields.Mode) (*Preview, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if props == nil || props.Len() == 0 {
		return nil, diag.Errorf(diag.CodeInvalidProperties, "properties", "at least one field is required")
	}
	transformed, err := o.transform(ctx, props)
	if err != nil {
		return nil, err
	}

	normalize := o.normalizer.Normalize
	if mode == fields.ModeUpdate {
		normalize = o.normalizer.NormalizeUpdate
	}
	normalized, diags, err := normalize(transformed, existing)
	if err != nil {
		return nil, err
	}
	return &Preview{Properties: normalized, Warnings: diags.Messages()}, nil
}

// ValidateLayout corrects a layout against existing fields without contacting
// the platform.
func (o *Orchestrator) ValidateLayout(ctx context.Context, nodes []layout.Node, existing *fields.Properties) (*Preview, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	corrected, diags, err := o.corrector.Correct(nodes, layout.ExistingFromProperties(existing))
	if err != nil {
		return nil, err
	}
	if corrected == nil {
		corrected = []layout.Node{}
	}
	return &Preview{Layout: corrected, Warnings: diags.Messages()}, nil
}
