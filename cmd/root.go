// Package cmd provides the command-line interface for shaderwatch with
// configuration from flags, environment variables and a config file.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--debounce, --port, ...)
//  2. SHADERWATCH_-prefixed environment variables
//     (SHADERWATCH_SERVER_PORT, SHADERWATCH_WATCH_DEBOUNCE, ...)
//  3. A .shaderwatch.yml file in the working directory (or --config)
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/shaderwatch/internal/config"
	"github.com/conneroisu/shaderwatch/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shaderwatch",
	Short: "Live-reload watcher for WGSL shaders",
	Long: `Shaderwatch watches WGSL shader sources and recompiles them to SPIR-V
whenever they change, so an editor or preview loop always has up-to-date
compiled output without restarting the host process.

Key Features:
  • Watches a vertex+fragment pair or a single compute shader
  • Debounced recompilation on every create/write event
  • Entry-point reflection (names, compute workgroup size)
  • WebSocket push of reload results to editor/browser clients

Quick Start:
  shaderwatch watch vert.wgsl frag.wgsl    Watch a graphics pipeline
  shaderwatch compute blur.wgsl            Watch a compute shader
  shaderwatch serve                        Watch and push results over WebSocket`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .shaderwatch.yml, can also use SHADERWATCH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
func initConfig() {
	if cfgFile == "" {
		cfgFile = os.Getenv("SHADERWATCH_CONFIG_FILE")
	}

	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger from the loaded configuration.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
