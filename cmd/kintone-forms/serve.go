package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-kintone-forms/internal/report"
	"github.com/goliatone/go-kintone-forms/pkg/tools"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the form tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = env.cfg.Server.Addr
			}
			token, _ := cmd.Flags().GetString("token")

			orch, err := env.newOrchestrator(true)
			if err != nil {
				return env.fail(err)
			}
			registry, err := tools.NewDefaultRegistry(ctx, orch)
			if err != nil {
				return env.fail(err)
			}

			mux := http.NewServeMux()
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			path, err := tools.RegisterRoutes(mux, env.cfg.Server.BasePath, registry,
				tools.WithLogger(env.logger),
				tools.WithGuard(bearerGuard(token)),
			)
			if err != nil {
				return env.fail(err)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(ctx, srv, env.logger, path)
		},
	}
	cmd.Flags().String("addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().String("token", "", "require this bearer token on every request")
	return cmd
}

func serve(ctx context.Context, srv *http.Server, logger *slog.Logger, path string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving tools", slog.String("addr", srv.Addr), slog.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// bearerGuard rejects requests without the expected bearer token. An empty
// token disables the check.
func bearerGuard(token string) tools.GuardFunc {
	if token == "" {
		return nil
	}
	expected := []byte(token)
	return func(r *http.Request) error {
		header := r.Header.Get("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			return tools.StatusError{Code: http.StatusUnauthorized, Err: errors.New("missing or invalid bearer token")}
		}
		return nil
	}
}

func newToolsCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed by serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, err := env.newOrchestrator(false)
			if err != nil {
				return env.fail(err)
			}
			registry, err := tools.NewDefaultRegistry(cmd.Context(), orch)
			if err != nil {
				return env.fail(err)
			}
			if env.output == "json" {
				return env.emit(report.Report{Operation: "tools"}, map[string]any{"tools": registry.Describe()})
			}
			tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
			for _, info := range registry.Describe() {
				fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Description)
			}
			return tw.Flush()
		},
	}
}
