package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wehubfusion/Daedalus/pkg/evaluator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formproc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, BackendHTTP, cfg.Fetch)
	assert.Equal(t, BackendNone, cfg.Unique)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, ServiceName, cfg.Tracing.ServiceName)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Reporting.DSN)
	assert.Equal(t, cfg.Tracing.Environment, cfg.Reporting.Environment)
	assert.Equal(t, 1.0, cfg.Reporting.SampleRate)

	ec, err := cfg.EvaluatorConfig()
	require.NoError(t, err)
	assert.Equal(t, evaluator.PolicyLenient, ec.Policy)
	assert.Equal(t, 2*time.Second, ec.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
evaluator:
  policy: strict
  timeout_ms: 250
process:
  server: true
  language: de-DE
fetch: nats
unique: nats
nats:
  url: nats://localhost:4222
  timeout: 3s
subjects:
  fetch: forms.fetch
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Process.Server)
	assert.Equal(t, "de-DE", cfg.Process.Language)
	assert.True(t, cfg.UsesNATS())
	assert.Equal(t, 3*time.Second, cfg.NATS.Timeout)
	assert.Equal(t, "daedalus-formproc", cfg.NATS.Name)
	assert.Equal(t, "forms.fetch", cfg.Subject.Fetch)

	ec, err := cfg.EvaluatorConfig()
	require.NoError(t, err)
	assert.Equal(t, evaluator.PolicyStrict, ec.Policy)
	assert.Equal(t, 250*time.Millisecond, ec.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DAEDALUS_LOG_LEVEL", "warn")
	t.Setenv("DAEDALUS_RULE_POLICY", "strict")
	t.Setenv("DAEDALUS_SERVER", "true")
	t.Setenv("DAEDALUS_SENTRY_DSN", "https://key@sentry.example.com/1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "strict", cfg.Evaluator.Policy)
	assert.True(t, cfg.Process.Server)
	assert.Equal(t, "https://key@sentry.example.com/1", cfg.Reporting.DSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad policy", "evaluator:\n  policy: sloppy\n"},
		{"bad security level", "evaluator:\n  security_level: open\n"},
		{"bad fetch backend", "fetch: ftp\n"},
		{"http unique backend", "unique: http\n"},
		{"nats without url", "unique: nats\n"},
		{"bad sample ratio", "tracing:\n  sample_ratio: 2\n"},
		{"bad reporting rate", "reporting:\n  sample_rate: -1\n"},
		{"not yaml", "logging: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Development = true
	cfg.Logging.Encoding = "console"

	logger, err := cfg.BuildLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
