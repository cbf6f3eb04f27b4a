// Package client talks to the NATS services that answer fetch and unique
// requests for the submission target. *Client implements both
// process.Fetcher and process.UniqueChecker.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	natsclient "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/nats"
	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Default subjects.
const (
	DefaultFetchSubject  = "formio.fetch"
	DefaultUniqueSubject = "formio.unique"
)

// Requester is the request/reply subset of *nats.Conn the client uses.
type Requester interface {
	RequestMsgWithContext(ctx context.Context, msg *natsclient.Msg) (*natsclient.Msg, error)
}

// Subjects names the request subjects.
type Subjects struct {
	Fetch  string `yaml:"fetch"`
	Unique string `yaml:"unique"`
}

// Client is the NATS collaborator client.
//
// Example usage:
//
//	c := client.NewClient("nats://localhost:4222")
//	if err := c.Connect(ctx); err != nil {
//	    logger.Fatal("Failed to connect", zap.Error(err))
//	}
//	defer c.Close()
//
//	scope, err := targets.ProcessSubmission(ctx, &process.Run{
//	    Options: &process.Options{Fetcher: c, UniqueChecker: c},
//	})
type Client struct {
	conn      *natsclient.Conn
	requester Requester
	config    *nats.ConnectionConfig
	subjects  Subjects
	logger    *zap.Logger
	tracer    trace.Tracer
}

var (
	_ process.Fetcher       = (*Client)(nil)
	_ process.UniqueChecker = (*Client)(nil)
)

// NewClient creates a client with the default connection configuration.
func NewClient(url string) *Client {
	return NewClientWithConfig(nats.DefaultConnectionConfig(url), Subjects{})
}

// NewClientWithConfig creates a client with custom connection settings.
// Empty subjects fall back to the defaults.
func NewClientWithConfig(config *nats.ConnectionConfig, subjects Subjects) *Client {
	return &Client{
		config:   config,
		subjects: withDefaults(subjects),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("daedalus/client"),
	}
}

// NewClientWithRequester wires the client to an existing requester. Useful
// for tests and for sharing a connection.
func NewClientWithRequester(r Requester, subjects Subjects) *Client {
	return &Client{
		requester: r,
		subjects:  withDefaults(subjects),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("daedalus/client"),
	}
}

func withDefaults(s Subjects) Subjects {
	if s.Fetch == "" {
		s.Fetch = DefaultFetchSubject
	}
	if s.Unique == "" {
		s.Unique = DefaultUniqueSubject
	}
	return s
}

// SetLogger sets a custom zap logger for the client
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Connect establishes the NATS connection.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}
	conn, err := nats.Connect(ctx, c.config, c.logger)
	if err != nil {
		return sdkerrors.NewError(sdkerrors.CodeNotConnected, "failed to connect to NATS", err)
	}
	c.conn = conn
	c.requester = conn
	return nil
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := nats.Close(c.conn); err != nil {
		return sdkerrors.NewError(sdkerrors.CodeClose, "failed to close connection", err)
	}
	c.conn = nil
	c.requester = nil
	return nil
}

// IsConnected reports whether requests can be sent.
func (c *Client) IsConnected() bool {
	if c.conn == nil {
		return c.requester != nil
	}
	return nats.IsConnected(c.conn)
}

// Connection returns the underlying NATS connection, nil before Connect.
func (c *Client) Connection() *natsclient.Conn {
	return c.conn
}

// Stats returns current connection statistics.
func (c *Client) Stats() ConnectionStats {
	if c.conn == nil {
		return ConnectionStats{}
	}
	stats := c.conn.Stats()
	return ConnectionStats{
		InMsgs:     stats.InMsgs,
		OutMsgs:    stats.OutMsgs,
		InBytes:    stats.InBytes,
		OutBytes:   stats.OutBytes,
		Reconnects: stats.Reconnects,
	}
}

// ConnectionStats holds connection statistics for monitoring and debugging.
type ConnectionStats struct {
	InMsgs     uint64
	OutMsgs    uint64
	InBytes    uint64
	OutBytes   uint64
	Reconnects uint64
}

// Ping round-trips to the server.
func (c *Client) Ping(ctx context.Context) error {
	if c.conn == nil {
		return sdkerrors.NewError(sdkerrors.CodeNotConnected, "not connected to NATS", sdkerrors.ErrNotConnected)
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- c.conn.FlushTimeout(c.config.Timeout)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("ping cancelled: %w", ctx.Err())
	case err := <-resultCh:
		if err != nil {
			return sdkerrors.NewError(sdkerrors.CodePing, "ping failed", err)
		}
		return nil
	}
}

type fetchReply struct {
	process.FetchResponse
	Error string `json:"error,omitempty"`
}

// Fetch publishes req on the fetch subject and decodes the reply.
func (c *Client) Fetch(ctx context.Context, req process.FetchRequest) (*process.FetchResponse, error) {
	var reply fetchReply
	if err := c.request(ctx, c.subjects.Fetch, req, &reply,
		attribute.String("fetch.url", req.URL),
		attribute.String("fetch.method", req.Method)); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, sdkerrors.NewError(sdkerrors.CodeRemote, reply.Error, sdkerrors.ErrRemote)
	}
	return &reply.FetchResponse, nil
}

type uniqueReply struct {
	Unique bool   `json:"unique"`
	Error  string `json:"error,omitempty"`
}

// IsUnique asks the unique subject whether q.Value is unused.
func (c *Client) IsUnique(ctx context.Context, q process.UniqueQuery) (bool, error) {
	var reply uniqueReply
	if err := c.request(ctx, c.subjects.Unique, q, &reply,
		attribute.String("unique.form", q.Form),
		attribute.String("unique.path", q.Path)); err != nil {
		return false, err
	}
	if reply.Error != "" {
		return false, sdkerrors.NewError(sdkerrors.CodeRemote, reply.Error, sdkerrors.ErrRemote)
	}
	return reply.Unique, nil
}

func (c *Client) request(ctx context.Context, subject string, payload, reply interface{}, attrs ...attribute.KeyValue) error {
	if c.requester == nil {
		return sdkerrors.NewError(sdkerrors.CodeNotConnected, "not connected to NATS", sdkerrors.ErrNotConnected)
	}
	if subject == "" {
		return sdkerrors.NewError(sdkerrors.CodeRequest, "no subject configured", sdkerrors.ErrInvalidSubject)
	}

	ctx, span := c.tracer.Start(ctx, "nats.request", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(append(attrs, attribute.String("messaging.destination", subject))...)

	data, err := json.Marshal(payload)
	if err != nil {
		return sdkerrors.NewError(sdkerrors.CodeRequest, "failed to encode request", err)
	}

	msg := natsclient.NewMsg(subject)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	resp, err := c.requester.RequestMsgWithContext(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("NATS request failed", zap.String("subject", subject), zap.Error(err))
		return classify(subject, err)
	}

	if err := json.Unmarshal(resp.Data, reply); err != nil {
		span.RecordError(err)
		return sdkerrors.NewError(sdkerrors.CodeDecode, fmt.Sprintf("invalid reply on %s", subject), err)
	}
	return nil
}

func classify(subject string, err error) error {
	switch {
	case errors.Is(err, natsclient.ErrNoResponders):
		return sdkerrors.NewError(sdkerrors.CodeRequest, fmt.Sprintf("no responders on %s", subject),
			fmt.Errorf("%w: %w", sdkerrors.ErrNoResponse, err))
	case errors.Is(err, natsclient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return sdkerrors.NewError(sdkerrors.CodeTimeout, fmt.Sprintf("request on %s timed out", subject),
			fmt.Errorf("%w: %w", sdkerrors.ErrTimeout, err))
	default:
		return sdkerrors.NewError(sdkerrors.CodeRequest, fmt.Sprintf("request on %s failed", subject), err)
	}
}
