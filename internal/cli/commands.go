package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/tools"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Normalize a raw measurement request (reads stdin when no file or '-' is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out, err := a.inv.Validate(cmd.Context(), payload)
			if err != nil {
				return reportError(cmd, err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newRecommendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend [file]",
		Short: "Request size recommendations for a normalized measurement record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var m domain.NormalizedMeasurement
			if err := json.Unmarshal(payload, &m); err != nil {
				return fmt.Errorf("decode normalized measurement: %w", err)
			}
			out, err := a.inv.Recommend(cmd.Context(), &m)
			if err != nil {
				return reportError(cmd, err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newPipelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline [file]",
		Short: "Validate a raw request, then request recommendations for the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			m, err := a.inv.Validate(cmd.Context(), payload)
			if err != nil {
				return reportError(cmd, err)
			}
			out, err := a.inv.Recommend(cmd.Context(), m)
			if err != nil {
				return reportError(cmd, err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newToolsCmd(a *app) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Agent tool endpoints backed by the invoker",
	}

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tool calls over HTTP at POST /tools/call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := &http.Server{
				Addr:              addr,
				Handler:           toolsRouter(tools.NewServer(a.inv)),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()

			slog.Info("tool server running", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8090", "listen address")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the available tool names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range tools.NewServer(a.inv).Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	toolsCmd.AddCommand(serveCmd, listCmd)
	return toolsCmd
}

func toolsRouter(s *tools.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Method(http.MethodPost, "/tools/call", s)
	r.Get("/tools", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"tools": s.Names()})
	})
	return r
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

// reportError writes the error envelope to stderr when there is one.
func reportError(cmd *cobra.Command, err error) error {
	if env, ok := domain.AsEnvelope(err); ok {
		_ = printJSON(cmd.ErrOrStderr(), map[string]any{"detail": env})
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
