package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shaderwatch/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch <vertex.wgsl> <fragment.wgsl>",
	Short: "Watch a vertex+fragment shader pair and recompile on change",
	Long: `Watch a vertex+fragment shader pair and recompile both to SPIR-V
whenever either file is created or written. Each reload outcome is logged;
with --out the latest artifacts are also written to disk.

Examples:
  shaderwatch watch vert.wgsl frag.wgsl
  shaderwatch watch vert.wgsl frag.wgsl --debounce 250ms
  shaderwatch watch vert.wgsl frag.wgsl --out build/ --validate`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addWatchFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch len(args) {
	case 2:
		cfg.Watch.Vertex = args[0]
		cfg.Watch.Fragment = args[1]
	case 1:
		return fmt.Errorf("watch needs both shader paths, got only %q (pass vertex and fragment, or configure both and pass none)", args[0])
	}
	cfg.Watch.Compute = ""
	applyWatchFlags(cmd.Flags(), cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.HasGraphics() {
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

	logger.Info(ctx, "watching shaders",
		"vertex", cfg.Watch.Vertex,
		"fragment", cfg.Watch.Fragment,
		"debounce", cfg.Watch.Debounce.String())

	consumeResults(ctx, w, cfg, logger, nil)

	return nil
}
