package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shaderwatch/internal/config"
	"github.com/conneroisu/shaderwatch/internal/server"
	"github.com/conneroisu/shaderwatch/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch shaders and push reload results over WebSocket",
	Long: `Watch the configured shaders and push every reload result to
connected WebSocket clients as JSON. Editor plugins or browser previews
connect to ws://<host>:<port>/ws and receive compiled entry-point metadata
on success or compiler diagnostics on failure.

Shader paths come from flags or from .shaderwatch.yml.

Examples:
  shaderwatch serve --vertex vert.wgsl --fragment frag.wgsl
  shaderwatch serve --compute blur.wgsl --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addWatchFlags(serveCmd.Flags())

	serveCmd.Flags().String("vertex", "", "vertex shader path")
	serveCmd.Flags().String("fragment", "", "fragment shader path")
	serveCmd.Flags().String("compute", "", "compute shader path")
	serveCmd.Flags().String("host", "", "address to listen on (default from config)")
	serveCmd.Flags().Int("port", 0, "port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("vertex") {
		cfg.Watch.Vertex, _ = flags.GetString("vertex")
	}
	if flags.Changed("fragment") {
		cfg.Watch.Fragment, _ = flags.GetString("fragment")
	}
	if flags.Changed("compute") {
		cfg.Watch.Compute, _ = flags.GetString("compute")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	applyWatchFlags(flags, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.HasGraphics() && !cfg.HasCompute() {
		return cmd.Usage()
	}

	logger := newLogger(cfg)

	w, err := startSession(cfg, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	srv := server.New(cfg.Server, logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "serving reload events", "addr", srv.Addr())

	consumeResults(ctx, w, cfg, logger, func(r watch.Result) {
		srv.Broadcast(server.EventFromResult(r))
	})

	return nil
}
