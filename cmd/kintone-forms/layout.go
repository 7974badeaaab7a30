package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-kintone-forms/internal/report"
	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
)

func newValidateLayoutCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout [flags] <layout.json|yaml|->",
		Short: "Validate and correct a form layout without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := report.Report{Operation: "validate layout"}
			nodes, err := env.readLayout(args[0])
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
			preview, err := orch.ValidateLayout(cmd.Context(), nodes, existing)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			rep.Warn(preview.Warnings...)
			rep.Payload = prettyJSON(preview.Layout)
			return env.emit(rep, preview)
		},
	}
	cmd.Flags().String("existing", "", "property map of the app's current fields")
	cmd.Flags().String("app", "", "read the current fields from this app instead of --existing")
	return cmd
}

func newUpdateLayoutCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-layout [flags] <layout.json|yaml|->",
		Short: "Correct a layout against the app's fields and replace the preview layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFlag(cmd)
			rep := report.Report{Operation: "update-layout", App: string(app)}
			nodes, err := env.readLayout(args[0])
			if err != nil {
				return env.reportFailure(rep, err)
			}
			orch, err := env.newOrchestrator(true)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			if err := env.confirm(cmd.Context(), "Replace the layout of app %s (%d top-level node(s))?", app, len(nodes)); err != nil {
				return env.reportFailure(rep, err)
			}
			result, err := orch.UpdateFormLayout(cmd.Context(), orchestrator.LayoutRequest{App: app, Layout: nodes, Revision: revisionFlag(cmd)})
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
