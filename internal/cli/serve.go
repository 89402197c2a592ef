package cli

import (
	"context"
	"fmt"
	"time"

	"aligncv/internal/app"
	"aligncv/internal/observability"
	"aligncv/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing matching, masking and optimization.

Available endpoints:
- GET  /: Welcome message
- GET  /health: Health check including AI model status
- GET  /stats: Server statistics and rate limiting info
- POST /analyze/: multipart resume_file, jd_file, min_match_percentage
- POST /optimize/: multipart resume_file, jd_file, required_match_for_optimization
- POST /mask/: multipart file
- GET  /download/{filename}: Download an optimized resume`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	om, err := initObservability(cmd)
	if err != nil {
		return err
	}
	defer shutdownObservability(cmd, om)

	components, err := buildComponents(cmd, app.WithRecorder(om))
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, components, server.ServerConfigFromConfig(cfg, Version), logger)
	srv.Observability = om
	return srv.Start()
}

// initObservability sets up tracing and metrics for long-running commands
func initObservability(cmd *cobra.Command) (*observability.ObservabilityManager, error) {
	cfg := getConfigFromContext(cmd.Context())
	om, err := observability.NewObservabilityManager(
		observability.GetObservabilityConfig(cfg, Version), cfg, getLoggerFromContext(cmd.Context()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

// shutdownObservability flushes exporters
func shutdownObservability(cmd *cobra.Command, om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		getLoggerFromContext(cmd.Context()).LogError(err, "Failed to shutdown observability")
	}
}
