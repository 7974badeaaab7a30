package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-kintone-forms/pkg/fields"
	"github.com/goliatone/go-kintone-forms/pkg/layout"
	"github.com/goliatone/go-kintone-forms/pkg/orchestrator"
	"github.com/goliatone/go-kintone-forms/pkg/platform"
)

var errCancelled = errors.New("cancelled: nothing was submitted")

// readInput reads path, or stdin when path is "-".
func (env *environment) readInput(path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(env.stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return data, "stdin.json", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, path, nil
}

func (env *environment) readProperties(path string) (*fields.Properties, error) {
	data, source, err := env.readInput(path)
	if err != nil {
		return nil, err
	}
	return fields.DecodeProperties(data, source)
}

func (env *environment) readLayout(path string) ([]layout.Node, error) {
	data, source, err := env.readInput(path)
	if err != nil {
		return nil, err
	}
	return layout.Decode(data, source)
}

// confirm asks before a write unless --yes was given.
func (env *environment) confirm(ctx context.Context, format string, args ...any) error {
	ok, err := env.confirmer.Confirm(ctx, fmt.Sprintf(format, args...), false)
	if err != nil {
		return err
	}
	if !ok {
		return errCancelled
	}
	return nil
}

// presetOption loads --preset into a transformer option. An empty path
// yields nil, which orchestrator.New skips.
func presetOption(path string) (orchestrator.Option, error) {
	if path == "" {
		return nil, nil
	}
	transformer, err := orchestrator.NewJSONPresetTransformerFromFS(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return orchestrator.WithTransformer(transformer), nil
}

func addAppFlag(cmd *cobra.Command) {
	cmd.Flags().String("app", "", "app ID")
	_ = cmd.MarkFlagRequired("app")
}

func addRevisionFlag(cmd *cobra.Command) {
	cmd.Flags().Int64("revision", 0, "expected app revision (0 or -1 for latest)")
}

func appFlag(cmd *cobra.Command) platform.AppID {
	value, _ := cmd.Flags().GetString("app")
	return platform.AppID(value)
}

func revisionFlag(cmd *cobra.Command) platform.Revision {
	value, _ := cmd.Flags().GetInt64("revision")
	return platform.Revision(value)
}

func prettyJSON(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
