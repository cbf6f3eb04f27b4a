// Package reporting forwards run failures to Sentry.
package reporting

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// Config configures error reporting. Reporting is disabled when DSN is empty.
type Config struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	Release     string  `yaml:"release"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return errors.New("reporting.sample_rate must be between 0 and 1")
	}
	return nil
}

// Reporter captures errors on a dedicated hub. The zero value and a nil
// *Reporter are disabled reporters.
type Reporter struct {
	hub    *sentry.Hub
	logger *zap.Logger
}

// New builds a reporter from cfg.
func New(cfg Config, logger *zap.Logger) (*Reporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		logger.Debug("Error reporting disabled")
		return &Reporter{logger: logger}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newWithOptions(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
	}, logger)
}

func newWithOptions(opts sentry.ClientOptions, logger *zap.Logger) (*Reporter, error) {
	c, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Error reporting enabled", zap.String("environment", opts.Environment))
	return &Reporter{hub: sentry.NewHub(c, sentry.NewScope()), logger: logger}, nil
}

// Enabled reports whether errors are sent anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Capture sends err with tags. Empty tag values are skipped.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if err == nil || !r.Enabled() {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			if v != "" {
				scope.SetTag(k, v)
			}
		}
		if id := r.hub.CaptureException(err); id != nil {
			r.logger.Debug("Error reported", zap.String("eventID", string(*id)))
		}
	})
}

// Flush waits up to timeout for buffered events.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
