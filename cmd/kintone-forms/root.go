package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-kintone-forms/internal/kintone"
	"github.com/goliatone/go-kintone-forms/internal/prompt"
	"github.com/goliatone/go-kintone-forms/internal/report"
	"github.com/goliatone/go-kintone-forms/pkg/config"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

// errReported marks a failure that has already been written to stdout.
var errReported = errors.New("failure reported")

type clientFactory func(cfg *config.Config, logger *slog.Logger) (platform.Client, error)

// environment carries process IO plus the state resolved from flags and
// configuration before any subcommand runs.
type environment struct {
	stdin     *os.File
	stdout    io.Writer
	stderr    io.Writer
	isTTY     func() bool
	newClient clientFactory
	confirmer prompt.Confirmer

	cfg      *config.Config
	logger   *slog.Logger
	renderer *report.Renderer
	output   string
	yes      bool
}

func newEnvironment() *environment {
	return &environment{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		isTTY:     func() bool { return prompt.IsTerminal(os.Stdout) },
		newClient: newKintoneClient,
	}
}

func newRootCmd(env *environment) *cobra.Command {
	root := &cobra.Command{
		Use:           "kintone-forms",
		Short:         "Validate, repair and submit kintone field definitions and form layouts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.setup(cmd)
		},
	}
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "configuration file (.yaml, .yml or .toml)")
	flags.String("log-level", "", "log level (debug|info|warn|error), overrides the config file")
	flags.String("log-format", "", "log format (text|json), overrides the config file")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("output", "text", "result format (text|json)")
	flags.BoolP("yes", "y", false, "submit without asking for confirmation")

	root.AddCommand(
		newValidateCmd(env),
		newAddFieldsCmd(env),
		newUpdateFieldsCmd(env),
		newDeleteFieldsCmd(env),
		newUpdateLayoutCmd(env),
		newDescribeCmd(env),
		newDeployCmd(env),
		newDeployStatusCmd(env),
		newServeCmd(env),
		newToolsCmd(env),
	)
	return root
}

func (env *environment) setup(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return env.fail(err)
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := flags.GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return env.fail(err)
	}
	env.cfg = cfg

	logger, err := newLogger(env.stderr, cfg.Log)
	if err != nil {
		return env.fail(err)
	}
	env.logger = logger

	colorMode, _ := flags.GetString("color")
	useColor, err := readColorMode(colorMode, env.isTTY)
	if err != nil {
		return env.fail(err)
	}
	renderer, err := report.New(report.WithColor(useColor))
	if err != nil {
		return env.fail(err)
	}
	env.renderer = renderer

	output, _ := flags.GetString("output")
	switch strings.ToLower(output) {
	case "text", "json":
		env.output = strings.ToLower(output)
	default:
		return env.fail(fmt.Errorf("invalid --output value %q (expected text|json)", output))
	}
	env.yes, _ = flags.GetBool("yes")
	if env.confirmer == nil {
		if env.yes {
			env.confirmer = prompt.Static(true)
		} else {
			env.confirmer = prompt.NewSurvey(env.stdin, nil)
		}
	}
	return nil
}

// fail writes err to stderr for errors raised before a report can be shown.
func (env *environment) fail(err error) error {
	fmt.Fprintf(env.stderr, "kintone-forms: %v\n", err)
	return errReported
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func readColorMode(value string, isTTY func() bool) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return isTTY != nil && isTTY(), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

func newKintoneClient(cfg *config.Config, logger *slog.Logger) (platform.Client, error) {
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}
	timeout, err := cfg.Kintone.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	opts := []kintone.Option{
		kintone.WithLogger(logger),
		kintone.WithTimeout(timeout),
		kintone.WithLiveReads(cfg.Kintone.LiveReads),
		kintone.WithAPITokens(cfg.Kintone.APITokens...),
	}
	if cfg.Kintone.Username != "" {
		opts = append(opts, kintone.WithPassword(cfg.Kintone.Username, cfg.Kintone.Password))
	}
	return kintone.New(cfg.Kintone.BaseURL, opts...)
}

// newOrchestrator builds an orchestrator from the loaded configuration. When
// remote is false no client is created and only offline operations work.
func (env *environment) newOrchestrator(remote bool, extra ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(env.logger),
		orchestrator.WithNormalizer(fields.NewNormalizer(fields.WithUnitClassifier(env.cfg.UnitClassifier()))),
		orchestrator.WithCorrector(layout.NewCorrector(env.cfg.CorrectorOptions()...)),
	}
	if remote {
		client, err := env.newClient(env.cfg, env.logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithClient(client))
	}
	return orchestrator.New(append(opts, extra...)...), nil
}

// emit writes a successful result either as JSON or as a report.
func (env *environment) emit(rep report.Report, payload any) error {
	if env.output == "json" {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	return env.renderer.Render(env.stdout, rep)
}

// reportFailure renders a failed operation and returns errReported so the
// process exits non-zero without printing the error again.
func (env *environment) reportFailure(rep report.Report, err error) error {
	if env.output == "json" {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": errorJSON(err)})
		return errReported
	}
	rep.Fail(err)
	if renderErr := env.renderer.Render(env.stdout, rep); renderErr != nil {
		return renderErr
	}
	return errReported
}

func errorJSON(err error) map[string]any {
	out := map[string]any{"message": err.Error()}
	var derr *diag.Error
	if errors.As(err, &derr) {
		out["code"] = string(derr.Code)
		out["message"] = derr.Message
		if derr.Path != "" {
			out["path"] = derr.Path
		}
		return out
	}
	if remote, ok := platform.AsRemote(err); ok {
		out["code"] = remote.Code
		out["message"] = remote.Message
		out["status"] = remote.Status
		mapping := remote.FieldErrors()
		if len(mapping.Fields) > 0 {
			out["fields"] = mapping.Fields
		}
		if len(mapping.Form) > 0 {
			out["form"] = mapping.Form
		}
	}
	return out
}
