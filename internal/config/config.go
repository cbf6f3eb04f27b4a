// Package config loads the formproc configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/internal/reporting"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/client"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/fetcher"
)

// ServiceName identifies the process in logs and traces.
const ServiceName = "daedalus-formproc"

// Collaborator backends.
const (
	BackendNone = "none"
	BackendHTTP = "http"
	BackendNATS = "nats"
)

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	Encoding    string `yaml:"encoding"`
}

type EvaluatorConfig struct {
	Policy        string `yaml:"policy"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	SecurityLevel string `yaml:"security_level"`
	PoolMinSize   int    `yaml:"pool_min_size"`
	PoolMaxSize   int    `yaml:"pool_max_size"`
}

type ProcessConfig struct {
	Server   bool   `yaml:"server"`
	Language string `yaml:"language"`
	FormID   string `yaml:"form_id"`
}

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Process   ProcessConfig   `yaml:"process"`

	// Fetch and Unique select the backend answering fetch requests and
	// unique checks: none, http (fetch only) or nats.
	Fetch  string `yaml:"fetch"`
	Unique string `yaml:"unique"`

	HTTP      fetcher.Config        `yaml:"http"`
	NATS      nats.ConnectionConfig `yaml:"nats"`
	Subject   client.Subjects       `yaml:"subjects"`
	Tracing   tracing.TracingConfig `yaml:"tracing"`
	Reporting reporting.Config      `yaml:"reporting"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path, applies defaults and DAEDALUS_* environment overrides
// and validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		// #nosec G304 -- path is provided by a trusted flag.
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}
	if cfg.Evaluator.Policy == "" {
		cfg.Evaluator.Policy = evaluator.PolicyLenient.String()
	}
	if cfg.Evaluator.TimeoutMs <= 0 {
		cfg.Evaluator.TimeoutMs = 2000
	}
	if cfg.Evaluator.SecurityLevel == "" {
		cfg.Evaluator.SecurityLevel = evaluator.SecurityLevelStandard
	}
	if strings.TrimSpace(cfg.Fetch) == "" {
		cfg.Fetch = BackendHTTP
	}
	if strings.TrimSpace(cfg.Unique) == "" {
		cfg.Unique = BackendNone
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 10 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = fetcher.DefaultMaxBodyBytes
	}
	d := nats.DefaultConnectionConfig(cfg.NATS.URL)
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = d.Name
	}
	if cfg.NATS.MaxReconnects == 0 {
		cfg.NATS.MaxReconnects = d.MaxReconnects
	}
	if cfg.NATS.ReconnectWait <= 0 {
		cfg.NATS.ReconnectWait = d.ReconnectWait
	}
	if cfg.NATS.Timeout <= 0 {
		cfg.NATS.Timeout = d.Timeout
	}
	cfg.Tracing.ApplyDefaults(ServiceName)
	if cfg.Reporting.Environment == "" {
		cfg.Reporting.Environment = cfg.Tracing.Environment
	}
	if cfg.Reporting.SampleRate == 0 {
		cfg.Reporting.SampleRate = 1
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_RULE_POLICY")); v != "" {
		cfg.Evaluator.Policy = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_FETCH")); v != "" {
		cfg.Fetch = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_UNIQUE")); v != "" {
		cfg.Unique = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_NATS_URL")); v != "" {
		cfg.NATS.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_NATS_TOKEN")); v != "" {
		cfg.NATS.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_OTLP_ENDPOINT")); v != "" {
		cfg.Tracing.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("DAEDALUS_SENTRY_DSN")); v != "" {
		cfg.Reporting.DSN = v
	}
	cfg.Tracing.Enabled = envBool("DAEDALUS_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Process.Server = envBool("DAEDALUS_SERVER", cfg.Process.Server)
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func validate(cfg *Config) error {
	if _, err := zap.ParseAtomicLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Encoding != "json" && cfg.Logging.Encoding != "console" {
		return errors.New("logging.encoding must be json or console")
	}
	if _, err := cfg.EvaluatorConfig(); err != nil {
		return err
	}
	switch cfg.Fetch {
	case BackendNone, BackendHTTP, BackendNATS:
	default:
		return fmt.Errorf("fetch must be one of none, http, nats; got %q", cfg.Fetch)
	}
	switch cfg.Unique {
	case BackendNone, BackendNATS:
	default:
		return fmt.Errorf("unique must be none or nats; got %q", cfg.Unique)
	}
	if cfg.UsesNATS() && strings.TrimSpace(cfg.NATS.URL) == "" {
		return errors.New("nats.url is required when a nats backend is selected")
	}
	if err := cfg.Reporting.Validate(); err != nil {
		return err
	}
	return cfg.Tracing.Validate()
}

// UsesNATS reports whether any collaborator talks to NATS.
func (c *Config) UsesNATS() bool {
	return c.Fetch == BackendNATS || c.Unique == BackendNATS
}

// EvaluatorConfig converts the evaluator section.
func (c *Config) EvaluatorConfig() (evaluator.Config, error) {
	policy, err := evaluator.ParsePolicy(c.Evaluator.Policy)
	if err != nil {
		return evaluator.Config{}, fmt.Errorf("evaluator.policy: %w", err)
	}
	ec := evaluator.Config{
		Policy:        policy,
		Timeout:       time.Duration(c.Evaluator.TimeoutMs) * time.Millisecond,
		SecurityLevel: c.Evaluator.SecurityLevel,
		Pool: evaluator.PoolConfig{
			MinSize: c.Evaluator.PoolMinSize,
			MaxSize: c.Evaluator.PoolMaxSize,
		},
	}
	ec.ApplyDefaults()
	if err := ec.Validate(); err != nil {
		return evaluator.Config{}, fmt.Errorf("evaluator: %w", err)
	}
	return ec, nil
}

// BuildLogger builds the zap logger described by the logging section.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.Encoding = c.Logging.Encoding
	zc.OutputPaths = []string{"stderr"}
	return zc.Build(zap.Fields(zap.String("service", ServiceName)))
}
