package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

// Tool names exposed by NewDefaultRegistry.
const (
	ToolAddFields        = "add_fields"
	ToolUpdateFormFields = "update_form_fields"
	ToolUpdateFormLayout = "update_form_layout"
	ToolGetFormFields    = "get_form_fields"
	ToolGetFormLayout    = "get_form_layout"
	ToolDescribeForm     = "describe_form"
	ToolDeleteFormFields = "delete_form_fields"
	ToolDeployApp        = "deploy_app"
	ToolGetDeployStatus  = "get_deploy_status"
	ToolValidateFields   = "validate_fields"
	ToolValidateLayout   = "validate_layout"
)

// NewDefaultRegistry registers every form tool bound to orch, with argument
// schemas taken from the embedded OpenAPI document.
func NewDefaultRegistry(ctx context.Context, orch *orchestrator.Orchestrator) (*Registry, error) {
	if orch == nil {
		return nil, errors.New("tools: orchestrator is required")
	}
	specs, err := LoadSpecs(ctx, documentYAML)
	if err != nil {
		return nil, err
	}

	handlers := map[string]HandlerFunc{
		ToolAddFields:        addFields(orch),
		ToolUpdateFormFields: updateFormFields(orch),
		ToolUpdateFormLayout: updateFormLayout(orch),
		ToolGetFormFields:    getFormFields(orch),
		ToolGetFormLayout:    getFormLayout(orch),
		ToolDescribeForm:     describeForm(orch),
		ToolDeleteFormFields: deleteFormFields(orch),
		ToolDeployApp:        deployApp(orch),
		ToolGetDeployStatus:  getDeployStatus(orch),
		ToolValidateFields:   validateFields(orch),
		ToolValidateLayout:   validateLayout(orch),
	}

	registry := NewRegistry()
	for name, handler := range handlers {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("tools: %s is not described by the openapi document", name)
		}
		if err := registry.Register(Tool{
			Name:        name,
			Description: spec.Description,
			Schema:      spec.Schema,
			Handler:     handler,
		}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

type appArgs struct {
	App platform.AppID `json:"app"`
}

type fieldsArgs struct {
	App        platform.AppID    `json:"app"`
	Properties json.RawMessage   `json:"properties"`
	Revision   platform.Revision `json:"revision"`
}

type layoutArgs struct {
	App      platform.AppID    `json:"app"`
	Layout   json.RawMessage   `json:"layout"`
	Revision platform.Revision `json:"revision"`
}

type deleteArgs struct {
	App      platform.AppID    `json:"app"`
	Fields   []string          `json:"fields"`
	Revision platform.Revision `json:"revision"`
}

type deployArgs struct {
	App      platform.AppID    `json:"app"`
	Revision platform.Revision `json:"revision"`
	Revert   bool              `json:"revert"`
}

type deployStatusArgs struct {
	Apps []platform.AppID `json:"apps"`
}

type validateFieldsArgs struct {
	Properties json.RawMessage `json:"properties"`
	Existing   json.RawMessage `json:"existing"`
	Mode       string          `json:"mode"`
}

type validateLayoutArgs struct {
	Layout   json.RawMessage `json:"layout"`
	Existing json.RawMessage `json:"existing"`
}

type deployResponse struct {
	App    platform.AppID `json:"app"`
	Revert bool           `json:"revert"`
}

func addFields(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args fieldsArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		props, err := decodeProperties(args.Properties, "properties")
		if err != nil {
			return nil, err
		}
		return orch.AddFields(ctx, orchestrator.FieldsRequest{App: args.App, Properties: props, Revision: args.Revision})
	}
}

func updateFormFields(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args fieldsArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		props, err := decodeProperties(args.Properties, "properties")
		if err != nil {
			return nil, err
		}
		return orch.UpdateFormFields(ctx, orchestrator.FieldsRequest{App: args.App, Properties: props, Revision: args.Revision})
	}
}

func updateFormLayout(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args layoutArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		nodes, err := decodeLayout(args.Layout)
		if err != nil {
			return nil, err
		}
		return orch.UpdateFormLayout(ctx, orchestrator.LayoutRequest{App: args.App, Layout: nodes, Revision: args.Revision})
	}
}

func getFormFields(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args appArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return orch.GetFormFields(ctx, args.App)
	}
}

func getFormLayout(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args appArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return orch.GetFormLayout(ctx, args.App)
	}
}

func describeForm(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args appArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return orch.DescribeForm(ctx, args.App)
	}
}

func deleteFormFields(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args deleteArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return orch.DeleteFormFields(ctx, orchestrator.DeleteRequest{App: args.App, Codes: args.Fields, Revision: args.Revision})
	}
}

func deployApp(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args deployArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if err := orch.DeployApp(ctx, args.App, args.Revision, args.Revert); err != nil {
			return nil, err
		}
		return deployResponse{App: args.App, Revert: args.Revert}, nil
	}
}

func getDeployStatus(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args deployStatusArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		statuses, err := orch.GetDeployStatus(ctx, args.Apps)
		if err != nil {
			return nil, err
		}
		return map[string]any{"apps": statuses}, nil
	}
}

func validateFields(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args validateFieldsArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		props, err := decodeProperties(args.Properties, "properties")
		if err != nil {
			return nil, err
		}
		existing, err := decodeExisting(args.Existing)
		if err != nil {
			return nil, err
		}
		mode := fields.ModeAdd
		if strings.EqualFold(args.Mode, "update") {
			mode = fields.ModeUpdate
		}
		return orch.ValidateFields(ctx, props, existing, mode)
	}
}

func validateLayout(orch *orchestrator.Orchestrator) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args validateLayoutArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		nodes, err := decodeLayout(args.Layout)
		if err != nil {
			return nil, err
		}
		existing, err := decodeExisting(args.Existing)
		if err != nil {
			return nil, err
		}
		return orch.ValidateLayout(ctx, nodes, existing)
	}
}

func decodeArgs(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &ArgumentError{Message: err.Error()}
	}
	return nil
}

func decodeProperties(raw json.RawMessage, name string) (*fields.Properties, error) {
	if isNull(raw) {
		return nil, &ArgumentError{Path: name, Message: "property map is required"}
	}
	return fields.DecodeProperties(raw, name+".json")
}

func decodeExisting(raw json.RawMessage) (*fields.Properties, error) {
	if isNull(raw) {
		return nil, nil
	}
	return fields.DecodeProperties(raw, "existing.json")
}

func decodeLayout(raw json.RawMessage) ([]layout.Node, error) {
	if isNull(raw) {
		return nil, &ArgumentError{Path: "layout", Message: "layout is required"}
	}
	return layout.Decode(raw, "layout.json")
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
