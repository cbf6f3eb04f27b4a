// Package fetcher provides an HTTP implementation of process.Fetcher.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// DefaultMaxBodyBytes caps response bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// HTTPDoer captures the subset of *http.Client the fetcher relies on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures an HTTP fetcher.
type Config struct {
	Timeout      time.Duration     `yaml:"timeout"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
	Headers      map[string]string `yaml:"headers"`
}

// HTTP performs fetch requests over HTTP.
type HTTP struct {
	doer   HTTPDoer
	config Config
	logger *zap.Logger
	tracer trace.Tracer
}

var _ process.Fetcher = (*HTTP)(nil)

// NewHTTP returns a fetcher using doer, or an *http.Client honoring
// config.Timeout when doer is nil.
func NewHTTP(doer HTTPDoer, config Config, logger *zap.Logger) *HTTP {
	if doer == nil {
		doer = &http.Client{Timeout: config.Timeout}
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{
		doer:   doer,
		config: config,
		logger: logger,
		tracer: otel.Tracer("daedalus/fetcher"),
	}
}

// Fetch sends req and returns the status, headers and body. Error statuses
// are returned as responses, not errors.
func (h *HTTP) Fetch(ctx context.Context, req process.FetchRequest) (*process.FetchResponse, error) {
	ctx, span := h.tracer.Start(ctx, "fetch.http", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL),
		attribute.String("form.path", req.Path),
	)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeRequest, "invalid request", err)
	}
	for k, v := range h.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := h.doer.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return nil, sdkerrors.NewError(sdkerrors.CodeTimeout, "request cancelled", fmt.Errorf("%w: %w", sdkerrors.ErrTimeout, err))
		}
		return nil, sdkerrors.NewError(sdkerrors.CodeRequest, fmt.Sprintf("%s %s", req.Method, req.URL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.config.MaxBodyBytes+1))
	if err != nil {
		span.RecordError(err)
		return nil, sdkerrors.NewError(sdkerrors.CodeDecode, "failed to read response", err)
	}
	if int64(len(data)) > h.config.MaxBodyBytes {
		return nil, sdkerrors.NewError(sdkerrors.CodeDecode,
			fmt.Sprintf("response exceeds %d bytes", h.config.MaxBodyBytes), sdkerrors.ErrBodyTooLarge)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	h.logger.Debug("fetched",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return &process.FetchResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}
