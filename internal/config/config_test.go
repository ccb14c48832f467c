package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/shaderwatch/internal/errors"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func validConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Vertex:   "shaders/vert.wgsl",
			Fragment: "shaders/frag.wgsl",
			Debounce: 100 * time.Millisecond,
		},
		Server: ServerConfig{Host: "localhost", Port: 7331},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	require.NoError(t, Init(""))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	assert.False(t, cfg.Watch.Validate)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 7331, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("SHADERWATCH_SERVER_PORT", "9000")
	t.Setenv("SHADERWATCH_LOG_LEVEL", "debug")
	require.NoError(t, Init(""))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvShaderPaths(t *testing.T) {
	resetViper(t)
	t.Setenv("SHADERWATCH_WATCH_VERTEX", "shaders/vert.wgsl")
	t.Setenv("SHADERWATCH_WATCH_FRAGMENT", "shaders/frag.wgsl")
	t.Setenv("SHADERWATCH_WATCH_OUT", "build")
	require.NoError(t, Init(""))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shaders/vert.wgsl", cfg.Watch.Vertex)
	assert.Equal(t, "shaders/frag.wgsl", cfg.Watch.Fragment)
	assert.Equal(t, "build", cfg.Watch.Out)
	assert.True(t, cfg.HasGraphics())
}

func TestLoadEnvComputePath(t *testing.T) {
	resetViper(t)
	t.Setenv("SHADERWATCH_WATCH_COMPUTE", "shaders/blur.wgsl")
	require.NoError(t, Init(""))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shaders/blur.wgsl", cfg.Watch.Compute)
	assert.True(t, cfg.HasCompute())
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsNonPositiveDebounce(t *testing.T) {
	cfg := validConfig()
	cfg.Watch.Debounce = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.GetErrorType(err))
}

func TestValidateRejectsTargetConflict(t *testing.T) {
	cfg := validConfig()
	cfg.Watch.Compute = "shaders/blur.wgsl"

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsIncompletePair(t *testing.T) {
	cfg := validConfig()
	cfg.Watch.Fragment = ""

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.Server.Port = port
		assert.Error(t, cfg.Validate(), "port %d", port)
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Format = "xml"

	require.Error(t, cfg.Validate())
}

func TestTargetPredicates(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.HasGraphics())
	assert.False(t, cfg.HasCompute())

	compute := &Config{
		Watch:  WatchConfig{Compute: "shaders/blur.wgsl", Debounce: time.Millisecond},
		Server: ServerConfig{Port: 7331},
	}
	assert.False(t, compute.HasGraphics())
	assert.True(t, compute.HasCompute())
}
