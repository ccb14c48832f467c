package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shaderwatch/internal/config"
)

var computeCmd = &cobra.Command{
	Use:   "compute <shader.wgsl>",
	Short: "Watch a compute shader and recompile on change",
	Long: `Watch a single compute shader and recompile it to SPIR-V whenever
it is created or written. The reflected entry point and workgroup size are
logged with each successful reload.

Examples:
  shaderwatch compute blur.wgsl
  shaderwatch compute blur.wgsl --debounce 250ms --out build/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)
	addWatchFlags(computeCmd.Flags())
}

func runCompute(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		cfg.Watch.Compute = args[0]
	}
	cfg.Watch.Vertex = ""
	cfg.Watch.Fragment = ""
	applyWatchFlags(cmd.Flags(), cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.HasCompute() {
		return cmd.Usage()
	}

	logger := newLogger(cfg)

	w, err := startSession(cfg, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "watching compute shader",
		"compute", cfg.Watch.Compute,
		"debounce", cfg.Watch.Debounce.String())

	consumeResults(ctx, w, cfg, logger, nil)

	return nil
}
