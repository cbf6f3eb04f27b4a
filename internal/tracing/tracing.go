// Package tracing provides OpenTelemetry tracing setup for the form processor
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// TracingConfig holds configuration for tracing setup
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"` // host:port, the exporter adds the path
	SampleRatio    float64 `yaml:"sample_ratio"`
}

// DefaultConfig returns a default tracing configuration. Tracing starts
// disabled.
func DefaultConfig(serviceName string) TracingConfig {
	return TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "127.0.0.1:4318",
		SampleRatio:    1.0,
	}
}

// ApplyDefaults fills unset fields from DefaultConfig.
func (c *TracingConfig) ApplyDefaults(serviceName string) {
	d := DefaultConfig(serviceName)
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = d.ServiceVersion
	}
	if c.Environment == "" {
		c.Environment = d.Environment
	}
	if c.OTLPEndpoint == "" {
		c.OTLPEndpoint = d.OTLPEndpoint
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = d.SampleRatio
	}
}

// Validate checks the configuration.
func (c TracingConfig) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.SampleRatio)
	}
	if c.Enabled && c.ServiceName == "" {
		return fmt.Errorf("tracing.service_name is required when tracing is enabled")
	}
	return nil
}

// SetupTracing initializes OpenTelemetry tracing with an OTLP exporter.
// When tracing is disabled it installs only the propagator and returns a
// no-op shutdown. The returned shutdown should be called on exit.
func SetupTracing(ctx context.Context, config TracingConfig, logger *zap.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})
	if !config.Enabled {
		logger.Debug("Tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	logger.Info("Setting up tracing",
		zap.String("service_name", config.ServiceName),
		zap.String("otlp_endpoint", config.OTLPEndpoint),
		zap.String("environment", config.Environment))

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(config.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Error("Failed to create OTLP exporter", zap.Error(err))
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		logger.Error("Failed to create resource", zap.Error(err))
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(config.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("Tracing setup completed")
	return tp.Shutdown, nil
}

// ShutdownTracing flushes and stops the tracing provider.
func ShutdownTracing(shutdown func(context.Context) error, logger *zap.Logger) error {
	if shutdown == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := shutdown(ctx)
	if err != nil {
		logger.Error("Failed to shutdown tracing", zap.Error(err))
	} else {
		logger.Debug("Tracing shutdown completed")
	}
	return err
}
