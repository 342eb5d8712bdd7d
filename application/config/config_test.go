package config_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/dlhost/application/config"
	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dlhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func env(vars map[string]string) config.Option {
	return config.WithEnv(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", config.WithEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultHostConfig(), *cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
plugin: ./plugins/libgreeter.so
exchange:
  capacity: 256
  override: false
  max_capacity: 8192
wait: 3s
`)
	cfg, err := config.Load(path, config.WithEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, "./plugins/libgreeter.so", cfg.Plugin)
	assert.Equal(t, 256, cfg.Exchange.Capacity)
	assert.False(t, cfg.Exchange.Override)
	assert.Equal(t, 8192, cfg.Exchange.Limit())
	assert.Equal(t, entities.BackendNative, cfg.Backend)

	wait, err := cfg.WaitTimeout()
	require.NoError(t, err)
	assert.Equal(t, "3s", wait.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "plugin: from-file.so\n")
	cfg, err := config.Load(path, env(map[string]string{
		config.EnvPlugin:      "from-env.wasm",
		config.EnvBackend:     "wasm",
		config.EnvLogLevel:    "debug",
		config.EnvLogFormat:   "  ",
		config.EnvMetricsAddr: "127.0.0.1:9464",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-env.wasm", cfg.Plugin)
	assert.Equal(t, entities.BackendWasm, cfg.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "blank variables are ignored")
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		env   map[string]string
		field string
	}{
		{name: "Unknown Key", body: "plugn: typo.so\n", field: "(root)"},
		{name: "Schema Violation", body: "exchange:\n  capacity: 0\n", field: "exchange.capacity"},
		{name: "Struct Rule", body: "exchange:\n  capacity: 2\n  input: seed\n", field: "exchange.capacity"},
		{name: "Bad Env Backend", body: "", env: map[string]string{config.EnvBackend: "jvm"}, field: "backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body), env(tt.env))
			require.Error(t, err)
			assert.Equal(t, errors.KindConfig, errors.KindOf(err))

			var ce *errors.ConfigError
			require.ErrorAs(t, err, &ce)
			require.NotEmpty(t, ce.Problems)
			assert.Equal(t, tt.field, ce.Problems[0].Field)
		})
	}
}

func TestLoad_Unreadable(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(writeConfig(t, "exchange: [1, 2"), config.WithEnv(nil))
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, lv := config.NewLogger(entities.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	lv.Set(-4)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestNewLoader(t *testing.T) {
	ctx := context.Background()
	logger, _ := config.NewLogger(entities.LogConfig{}, &bytes.Buffer{})

	cfg := entities.DefaultHostConfig()
	l, err := config.NewLoader(ctx, &cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, "native", l.Name())

	cfg.Backend = entities.BackendWasm
	cfg.Wasm.MemoryLimitPages = 16
	l, err = config.NewLoader(ctx, &cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, "wasm", l.Name())
	require.NoError(t, l.Close(ctx))

	cfg.Backend = "jvm"
	_, err = config.NewLoader(ctx, &cfg, logger)
	require.Error(t, err)
}

func TestNewHost_Wasm(t *testing.T) {
	ctx := context.Background()
	greeter, err := filepath.Abs("../../infrastructure/wazero/testdata/greeter.wasm")
	require.NoError(t, err)

	cfg := entities.DefaultHostConfig()
	cfg.Backend = entities.BackendWasm
	cfg.Policy.AllowedPaths = []string{filepath.Dir(greeter) + "/*.wasm"}
	cfg.Exchange.MaxCapacity = 1024
	logger, _ := config.NewLogger(entities.LogConfig{}, &bytes.Buffer{})

	h, err := config.NewHost(ctx, &cfg, logger)
	require.NoError(t, err)
	defer func() { _ = h.Close(ctx) }()

	require.NoError(t, h.Load(ctx, greeter))
	assert.Equal(t, "wasm", h.Status().Backend)

	_, err = h.Exchange(ctx, 2048, true)
	assert.Equal(t, errors.KindInvalidBuffer, errors.KindOf(err), "capacity above exchange.max_capacity is refused")

	err = h.Load(ctx, "/etc/passwd")
	assert.Equal(t, errors.KindLoad, errors.KindOf(err), "paths outside the allowlist are refused")
}

func TestNewHost_BadPattern(t *testing.T) {
	cfg := entities.DefaultHostConfig()
	cfg.Policy.AllowedPaths = []string{"/opt/[plugins"}
	logger, _ := config.NewLogger(entities.LogConfig{}, &bytes.Buffer{})

	_, err := config.NewHost(context.Background(), &cfg, logger)
	require.Error(t, err)
}
