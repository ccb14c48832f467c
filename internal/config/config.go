// Package config provides configuration management for shaderwatch
// using Viper for flexible loading from files, environment variables,
// and command-line flags.
//
// Configuration sources, highest priority first: command-line flags,
// SHADERWATCH_-prefixed environment variables, then a .shaderwatch.yml
// file in the working directory.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type WatchConfig struct {
	Vertex   string        `yaml:"vertex"`
	Fragment string        `yaml:"fragment"`
	Compute  string        `yaml:"compute"`
	Debounce time.Duration `yaml:"debounce"`
	Validate bool          `yaml:"validate"`
	Out      string        `yaml:"out"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Init wires viper's file and environment sources. Called once from
// the CLI before any Load.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".shaderwatch")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SHADERWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; everything has defaults. A
		// present but unreadable one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

func setDefaults() {
	// Every key needs a default: viper only surfaces env values on
	// Unmarshal for keys it already knows about.
	viper.SetDefault("watch.vertex", "")
	viper.SetDefault("watch.fragment", "")
	viper.SetDefault("watch.compute", "")
	viper.SetDefault("watch.out", "")
	viper.SetDefault("watch.debounce", 100*time.Millisecond)
	viper.SetDefault("watch.validate", false)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 7331)
	viper.SetDefault("server.allowed_origins", []string{})
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load unmarshals the merged configuration.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = 100 * time.Millisecond
	}

	return &config, nil
}
