package config

import (
	"fmt"

	"github.com/conneroisu/shaderwatch/internal/errors"
)

// Validate checks the configuration for values the watcher cannot run
// with. It does not check that shader files exist; missing files
// surface through the initial reload instead.
func (c *Config) Validate() error {
	if c.Watch.Debounce <= 0 {
		return errors.NewConfigError("DEBOUNCE_INVALID", "watch.debounce must be positive")
	}

	graphics := c.Watch.Vertex != "" || c.Watch.Fragment != ""
	if graphics && c.Watch.Compute != "" {
		return errors.NewConfigError("TARGET_CONFLICT",
			"watch.compute cannot be combined with watch.vertex/watch.fragment")
	}

	if (c.Watch.Vertex == "") != (c.Watch.Fragment == "") {
		return errors.NewConfigError("TARGET_INCOMPLETE",
			"watch.vertex and watch.fragment must be set together")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewConfigError("PORT_INVALID",
			fmt.Sprintf("server.port %d is outside 1-65535", c.Server.Port))
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.NewConfigError("LOG_FORMAT_INVALID",
			fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	return nil
}

// HasGraphics reports whether a vertex+fragment pair is configured.
func (c *Config) HasGraphics() bool {
	return c.Watch.Vertex != "" && c.Watch.Fragment != ""
}

// HasCompute reports whether a compute shader is configured.
func (c *Config) HasCompute() bool {
	return c.Watch.Compute != ""
}
