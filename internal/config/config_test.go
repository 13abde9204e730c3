package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout.Duration())
	assert.Equal(t, 1000, cfg.RouteCacheSize)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout.Duration())
	assert.Equal(t, 30*time.Second, cfg.ShutdownGrace.Duration())
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "info", cfg.Log.Level)

	// Explicit values survive.
	cfg = &Config{Host: "0.0.0.0", Port: 3000}
	cfg.ApplyDefaults()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port too large", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"negative port", func(c *Config) { c.Port = -1 }, "invalid port"},
		{"negative timeout", func(c *Config) { c.DispatchTimeout = -1 }, "dispatchTimeout"},
		{"negative grace", func(c *Config) { c.ShutdownGrace = -1 }, "shutdownGrace"},
		{"rate limit without rps", func(c *Config) {
			c.RateLimit = &RateLimitConfig{Enabled: true, Burst: 1}
		}, "requestsPerSecond"},
		{"rate limit without burst", func(c *Config) {
			c.RateLimit = &RateLimitConfig{Enabled: true, RequestsPerSecond: 10}
		}, "burst"},
		{"rate limit disabled skips checks", func(c *Config) {
			c.RateLimit = &RateLimitConfig{Enabled: false}
		}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Addr(t *testing.T) {
	t.Parallel()

	cfg := &Config{Host: "0.0.0.0", Port: 3000}
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())

	cfg = &Config{Port: 3000}
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
}

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	yaml := `
host: 0.0.0.0
port: 3000
dispatchTimeout: "5s"
routeCacheSize: 64
log:
  level: debug
  format: console
rateLimit:
  enabled: true
  requestsPerSecond: 100
  burst: 20
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.DispatchTimeout.Duration())
	assert.Equal(t, 64, cfg.RouteCacheSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NotNil(t, cfg.RateLimit)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadFromReader_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("host: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFromReader_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("port: 99999"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLoadFromReader_EnvSubstitution(t *testing.T) {
	t.Setenv("NITRO_TEST_HOST", "10.1.2.3")

	yaml := `
host: ${NITRO_TEST_HOST}
port: ${NITRO_TEST_PORT:-9090}
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`dispatchTimeout: "1h30m"`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.DispatchTimeout.Duration())

	_, err = LoadFromReader(strings.NewReader(`dispatchTimeout: "soon"`))
	assert.Error(t, err)
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"45s"`)))
	assert.Equal(t, 45*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Zero(t, d.Duration())

	out, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
