package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-kintone-forms/internal/report"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

func newDescribeCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print an app's fields and layout and list fields missing from the layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFlag(cmd)
			rep := report.Report{Operation: "describe", App: string(app)}
			orch, err := env.newOrchestrator(true)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			desc, err := orch.DescribeForm(cmd.Context(), app)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			if desc.Fields != nil {
				rep.Revision = desc.Fields.Revision.String()
			}
			rep.Warn(desc.Warnings...)
			rep.Payload = prettyJSON(desc)
			return env.emit(rep, desc)
		},
	}
	addAppFlag(cmd)
	return cmd
}

func newDeployCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy preview settings to the live app, or revert them with --revert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFlag(cmd)
			revert, _ := cmd.Flags().GetBool("revert")
			rep := report.Report{Operation: "deploy", App: string(app)}
			if revert {
				rep.Operation = "deploy (revert)"
			}
			orch, err := env.newOrchestrator(true)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			question := "Deploy the preview settings of app %s?"
			if revert {
				question = "Discard the preview settings of app %s?"
			}
			if err := env.confirm(cmd.Context(), question, app); err != nil {
				return env.reportFailure(rep, err)
			}
			if err := orch.DeployApp(cmd.Context(), app, revisionFlag(cmd), revert); err != nil {
				return env.reportFailure(rep, err)
			}
			return env.emit(rep, map[string]any{"app": app, "revert": revert})
		},
	}
	addAppFlag(cmd)
	addRevisionFlag(cmd)
	cmd.Flags().Bool("revert", false, "discard preview changes instead of deploying them")
	return cmd
}

func newDeployStatusCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-status <app>...",
		Short: "Show the deployment status of one or more apps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := report.Report{Operation: "deploy-status"}
			apps := make([]platform.AppID, 0, len(args))
			for _, arg := range args {
				apps = append(apps, platform.AppID(arg))
			}
			orch, err := env.newOrchestrator(true)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			statuses, err := orch.GetDeployStatus(cmd.Context(), apps)
			if err != nil {
				return env.reportFailure(rep, err)
			}
			if env.output == "json" {
				return env.emit(rep, map[string]any{"apps": statuses})
			}
			for _, status := range statuses {
				fmt.Fprintf(env.stdout, "%s\t%s\n", status.App, status.Status)
			}
			return nil
		},
	}
	return cmd
}
