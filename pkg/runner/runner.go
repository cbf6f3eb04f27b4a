// Package runner serves pipeline runs over NATS. Requests arrive on a queue
// subscription, are distributed to a pool of workers and answered on the
// request's reply subject.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
	"github.com/wehubfusion/Daedalus/pkg/process/targets"
)

// DefaultSubject is the subject requests are served on.
const DefaultSubject = "formio.process"

// Conn is the subset of *nats.Conn the runner uses.
type Conn interface {
	ChanQueueSubscribe(subject, queue string, ch chan *nats.Msg) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
}

// ErrorReporter receives runs that fail outright.
type ErrorReporter interface {
	Capture(err error, tags map[string]string)
}

// Request asks for one pipeline run.
type Request struct {
	RunID    string                 `json:"runId,omitempty"`
	Target   string                 `json:"target"`
	Form     json.RawMessage        `json:"form"`
	Data     map[string]interface{} `json:"data"`
	Server   *bool                  `json:"server,omitempty"`
	Language string                 `json:"language,omitempty"`
	FormID   string                 `json:"formId,omitempty"`
	Flat     bool                   `json:"flat,omitempty"`
}

// Response answers a Request. Scope is returned even when Error is set.
type Response struct {
	RunID string                 `json:"runId,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Scope *process.Scope         `json:"scope,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// Config configures a Runner.
type Config struct {
	Subject        string
	Queue          string
	Workers        int
	ProcessTimeout time.Duration
}

// Runner processes requests with a fixed pool of workers.
type Runner struct {
	conn     Conn
	config   Config
	options  process.Options
	registry *process.Registry
	logger   *zap.Logger
	tracer   trace.Tracer
	reporter ErrorReporter
}

// NewRunner validates config and builds a runner. options supplies the
// collaborators and defaults shared by every run.
func NewRunner(conn Conn, config Config, options process.Options, logger *zap.Logger) (*Runner, error) {
	if conn == nil {
		return nil, errors.New("conn cannot be nil")
	}
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Workers <= 0 {
		return nil, errors.New("workers must be greater than 0")
	}
	if config.ProcessTimeout <= 0 {
		return nil, errors.New("processTimeout must be greater than 0")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Runner{
		conn:     conn,
		config:   config,
		options:  options,
		registry: targets.NewRegistry(),
		logger:   logger,
		tracer:   otel.Tracer("daedalus/runner"),
	}, nil
}

// SetReporter sets where failed runs are reported.
func (r *Runner) SetReporter(reporter ErrorReporter) {
	r.reporter = reporter
}

// Run subscribes and serves until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	msgs := make(chan *nats.Msg, r.config.Workers*2)
	sub, err := r.conn.ChanQueueSubscribe(r.config.Subject, r.config.Queue, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.config.Subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Warn("Unsubscribe failed", zap.Error(err))
		}
	}()

	r.logger.Info("Runner listening",
		zap.String("subject", r.config.Subject),
		zap.String("queue", r.config.Queue),
		zap.Int("workers", r.config.Workers))
	return r.Serve(ctx, msgs)
}

// Serve distributes msgs to the workers. It returns nil once msgs is closed
// and drained, or ctx.Err() when ctx is cancelled first.
func (r *Runner) Serve(ctx context.Context, msgs <-chan *nats.Msg) error {
	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID, msgs)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
		r.logger.Info("Runner completed")
		return nil
	case <-ctx.Done():
		<-done
		r.logger.Info("Runner stopped due to context cancellation")
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context, workerID int, msgs <-chan *nats.Msg) {
	r.logger.Debug("Worker started", zap.Int("workerID", workerID))
	defer r.logger.Debug("Worker stopped", zap.Int("workerID", workerID))

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.processMessage(ctx, workerID, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) processMessage(ctx context.Context, workerID int, msg *nats.Msg) {
	if msg.Header != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
	}
	ctx, span := r.tracer.Start(ctx, "runner.processMessage",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("messaging.destination", msg.Subject),
		))
	defer span.End()

	start := time.Now()
	resp := r.Handle(ctx, msg.Data)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("run.id", resp.RunID),
		attribute.Int64("processing.duration_ms", elapsed.Milliseconds()),
	)
	if resp.Error != "" {
		span.SetStatus(codes.Error, resp.Error)
		r.logger.Error("Run failed",
			zap.Int("workerID", workerID),
			zap.String("runID", resp.RunID),
			zap.Duration("processingTime", elapsed),
			zap.String("error", resp.Error))
		if r.reporter != nil {
			r.reporter.Capture(errors.New(resp.Error), map[string]string{
				"runID":   resp.RunID,
				"subject": msg.Subject,
			})
		}
	} else {
		span.SetStatus(codes.Ok, "run completed")
		r.logger.Info("Run completed",
			zap.Int("workerID", workerID),
			zap.String("runID", resp.RunID),
			zap.Int("errors", len(resp.Scope.Errors)),
			zap.Duration("processingTime", elapsed))
	}

	if msg.Reply == "" {
		r.logger.Warn("Dropping response without reply subject", zap.String("runID", resp.RunID))
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		body, _ = json.Marshal(Response{RunID: resp.RunID, Error: fmt.Sprintf("encode response: %v", err)})
	}
	if err := r.conn.Publish(msg.Reply, body); err != nil {
		span.RecordError(err)
		r.logger.Error("Error publishing response",
			zap.Int("workerID", workerID),
			zap.String("runID", resp.RunID),
			zap.Error(err))
	}
}

// Handle decodes and executes one request. Failures are reported in the
// response rather than returned.
func (r *Runner) Handle(ctx context.Context, data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Response{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	resp := Response{RunID: req.RunID}

	list, err := components.Parse(req.Form)
	if err != nil {
		resp.Error = fmt.Sprintf("invalid form: %v", err)
		return resp
	}
	target := req.Target
	if target == "" {
		target = targets.SubmissionTarget
	}
	processors, err := targets.Processors(r.registry, target)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	options := r.options
	options.Logger = r.logger
	if req.Server != nil {
		options.Server = *req.Server
	}
	if req.Language != "" {
		options.Language = req.Language
	}
	if req.FormID != "" {
		options.FormID = req.FormID
	}

	scope := process.NewScope()
	if req.RunID != "" {
		scope.RunID = req.RunID
	}
	resp.RunID = scope.RunID

	processCtx, cancel := context.WithTimeout(ctx, r.config.ProcessTimeout)
	defer cancel()

	run := &process.Run{
		Components: list,
		Data:       req.Data,
		Scope:      scope,
		Processors: processors,
		Flat:       req.Flat,
		Options:    &options,
	}
	resp.Scope, err = process.Process(processCtx, run)
	resp.Data = run.Data
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
