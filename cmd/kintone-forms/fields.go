package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-kintone-forms/internal/report"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
)

func newValidateCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Normalize fields or a layout offline and print the corrected payload",
	}
	cmd.AddCommand(newValidateFieldsCmd(env), newValidateLayoutCmd(env))
	return cmd
}

func newValidateFieldsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields [flags] <properties.json|yaml|->",
		Short: "Validate and repair a field property map without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeName, _ := cmd.Flags().GetString("mode")
			mode := fields.ModeAdd
			switch strings.ToLower(modeName) {
			case "add":
			case "update":
				mode = fields.ModeUpdate
			default:
				return env.fail(fmt.Errorf("invalid --mode value %q (expected add|update)", modeName))
			}

			rep := report.Report{Operation: "validate fields (" + strings.ToLower(modeName) + ")"}
			props, err := env.readProperties(args[0])
			if err != nil {
				return env.reportFailure(rep, err)
			}
			existing, err := env.existingProperties(cmd, &rep)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			orch, err := env.newOrchestrator(false)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			preview, err := orch.ValidateFields(cmd.Context(), props, existing, mode)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			rep.Warn(preview.Warnings...)
			rep.Payload = prettyJSON(preview.Properties)
			return env.emit(rep, preview)
		},
	}
	cmd.Flags().String("mode", "add", "normalization mode (add|update)")
	cmd.Flags().String("existing", "", "property map of the app's current fields")
	cmd.Flags().String("app", "", "read the current fields from this app instead of --existing")
	return cmd
}

// existingProperties resolves the snapshot for offline validation from
// --existing or, when --app is set, from the platform.
func (env *environment) existingProperties(cmd *cobra.Command, rep *report.Report) (*fields.Properties, error) {
	if path, _ := cmd.Flags().GetString("existing"); path != "" {
		return env.readProperties(path)
	}
	app := appFlag(cmd)
	if app == "" {
		return nil, nil
	}
	rep.App = string(app)
	orch, err := env.newOrchestrator(true)
	if err != nil {
		return nil, err
	}
	snapshot, err := orch.GetFormFields(cmd.Context(), app)
	if err != nil {
		return nil, err
	}
	rep.Revision = snapshot.Revision.String()
	return snapshot.Properties, nil
}

func newAddFieldsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-fields [flags] <properties.json|yaml|->",
		Short: "Normalize new fields against the app and add them to the preview form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.submitFields(cmd, args[0], "add-fields", func(orch *orchestrator.Orchestrator, req orchestrator.FieldsRequest) (*orchestrator.Result, error) {
				return orch.AddFields(cmd.Context(), req)
			})
		},
	}
	addAppFlag(cmd)
	addRevisionFlag(cmd)
	cmd.Flags().String("preset", "", "JSON preset applied to the properties before normalization")
	return cmd
}

func newUpdateFieldsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-fields [flags] <properties.json|yaml|->",
		Short: "Normalize a partial update against the app and submit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.submitFields(cmd, args[0], "update-fields", func(orch *orchestrator.Orchestrator, req orchestrator.FieldsRequest) (*orchestrator.Result, error) {
				return orch.UpdateFormFields(cmd.Context(), req)
			})
		},
	}
	addAppFlag(cmd)
	addRevisionFlag(cmd)
	cmd.Flags().String("preset", "", "JSON preset applied to the properties before normalization")
	return cmd
}

type fieldsSubmitter func(*orchestrator.Orchestrator, orchestrator.FieldsRequest) (*orchestrator.Result, error)

func (env *environment) submitFields(cmd *cobra.Command, path, op string, submit fieldsSubmitter) error {
	app := appFlag(cmd)
	rep := report.Report{Operation: op, App: string(app)}

	props, err := env.readProperties(path)
	if err != nil {
		return env.reportFailure(rep, err)
	}
	presetPath, _ := cmd.Flags().GetString("preset")
	preset, err := presetOption(presetPath)
	if err != nil {
		return env.reportFailure(rep, err)
	}
	orch, err := env.newOrchestrator(true, preset)
	if err != nil {
		return env.reportFailure(rep, err)
	}
	if err := env.confirm(cmd.Context(), "Submit %d field(s) to app %s?", props.Len(), app); err != nil {
		return env.reportFailure(rep, err)
	}

	result, err := submit(orch, orchestrator.FieldsRequest{App: app, Properties: props, Revision: revisionFlag(cmd)})
	if err != nil {
		return env.reportFailure(rep, err)
	}
	rep.Revision = result.Revision.String()
	rep.Warn(result.Warnings...)
	return env.emit(rep, result)
}

func newDeleteFieldsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-fields [flags] <code>...",
		Short: "Delete fields from the preview form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFlag(cmd)
			rep := report.Report{Operation: "delete-fields", App: string(app)}
			orch, err := env.newOrchestrator(true)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			if err := env.confirm(cmd.Context(), "Delete %s from app %s?", strings.Join(args, ", "), app); err != nil {
				return env.reportFailure(rep, err)
			}
			result, err := orch.DeleteFormFields(cmd.Context(), orchestrator.DeleteRequest{App: app, Codes: args, Revision: revisionFlag(cmd)})
			if err != nil {
				return env.reportFailure(rep, err)
			}
			rep.Revision = result.Revision.String()
			rep.Warn(result.Warnings...)
			return env.emit(rep, result)
		},
	}
	addAppFlag(cmd)
	addRevisionFlag(cmd)
	return cmd
}
