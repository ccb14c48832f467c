package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/conneroisu/shaderwatch/internal/config"
	"github.com/conneroisu/shaderwatch/internal/logging"
	"github.com/conneroisu/shaderwatch/internal/shader"
	"github.com/conneroisu/shaderwatch/internal/watch"
)

// addWatchFlags registers the flags shared by the watch, compute and
// serve commands.
func addWatchFlags(flags *pflag.FlagSet) {
	flags.Duration("debounce", 0, "coalescing window for filesystem events (default from config, 100ms)")
	flags.Bool("validate", false, "run IR validation before SPIR-V generation")
	flags.String("out", "", "directory to write the latest SPIR-V artifacts to")
}

// applyWatchFlags overrides config values with explicitly set flags.
// Flags that were not passed leave the config (file/env) value intact.
func applyWatchFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("debounce") {
		cfg.Watch.Debounce, _ = flags.GetDuration("debounce")
	}
	if flags.Changed("validate") {
		cfg.Watch.Validate, _ = flags.GetBool("validate")
	}
	if flags.Changed("out") {
		cfg.Watch.Out, _ = flags.GetString("out")
	}
}

// newCompiler builds the shader compiler for a session.
func newCompiler(cfg *config.Config) *shader.Compiler {
	opts := shader.DefaultOptions()
	opts.Validate = cfg.Watch.Validate

	return shader.NewCompiler(opts)
}

// startSession starts the watch session the configuration describes.
func startSession(cfg *config.Config, logger logging.Logger) (*watch.Watch, error) {
	opts := []watch.Option{
		watch.WithCompiler(newCompiler(cfg)),
		watch.WithLogger(logger),
	}

	if cfg.HasCompute() {
		return watch.NewCompute(cfg.Watch.Compute, cfg.Watch.Debounce, opts...)
	}

	return watch.New(cfg.Watch.Vertex, cfg.Watch.Fragment, cfg.Watch.Debounce, opts...)
}

// consumeResults drains the session's result channel until ctx is
// canceled, logging each outcome and invoking onResult if set.
func consumeResults(ctx context.Context, w *watch.Watch, cfg *config.Config, logger logging.Logger, onResult func(watch.Result)) {
	for {
		select {
		case <-ctx.Done():
			return

		case r := <-w.Results():
			logResult(ctx, r, logger)

			if r.Err == nil && cfg.Watch.Out != "" {
				if err := writeArtifacts(cfg.Watch.Out, r.Message); err != nil {
					logger.Warn(ctx, err, "writing SPIR-V artifacts", "dir", cfg.Watch.Out)
				}
			}

			if onResult != nil {
				onResult(r)
			}
		}
	}
}

func logResult(ctx context.Context, r watch.Result, logger logging.Logger) {
	if r.Err != nil {
		logger.Error(ctx, r.Err, "reload failed")

		return
	}

	entry := r.Message.Entry
	switch {
	case entry.Compute.Name != "":
		logger.Info(ctx, "reloaded compute shader",
			"entry", entry.Compute.Name,
			"workgroup", fmt.Sprintf("%dx%dx%d", entry.Compute.Workgroup[0], entry.Compute.Workgroup[1], entry.Compute.Workgroup[2]),
			"spirv_bytes", len(r.Message.Shaders.Compute))
	default:
		logger.Info(ctx, "reloaded graphics shaders",
			"vertex_entry", entry.Vertex.Name,
			"fragment_entry", entry.Fragment.Name,
			"spirv_bytes", len(r.Message.Shaders.Vertex)+len(r.Message.Shaders.Fragment))
	}
}

// writeArtifacts dumps the latest SPIR-V per stage into outDir.
func writeArtifacts(outDir string, msg *watch.Message) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	stages := []struct {
		name string
		data []byte
	}{
		{"vertex.spv", msg.Shaders.Vertex},
		{"fragment.spv", msg.Shaders.Fragment},
		{"compute.spv", msg.Shaders.Compute},
	}

	for _, stage := range stages {
		if len(stage.data) == 0 {
			continue
		}
		if err := os.WriteFile(filepath.Join(outDir, stage.name), stage.data, 0644); err != nil {
			return err
		}
	}

	return nil
}
