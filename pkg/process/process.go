package process

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
)

// Run is one pipeline invocation over a form and its submission data.
type Run struct {
	// Form is the form definition the components belong to.
	Form map[string]interface{}
	// Components is the component tree to walk.
	Components []*components.Component
	// Data is the submission data, mutated in place.
	Data map[string]interface{}
	// Scope receives the results. A fresh scope is created when nil.
	Scope *Scope
	// Processors is the target, in execution order.
	Processors []ProcessorInfo
	// Instances maps data paths to live component instances.
	Instances map[string]interface{}
	// Flat disables recursion into children.
	Flat bool

	Options     *Options
	EvalContext func(map[string]interface{}) map[string]interface{}
}

// Process walks the component tree and runs the target's stages on every
// node with a row, then runs the post-process hooks. Stages may block on ctx.
//
// The returned scope holds everything collected up to the point of failure
// when an error is returned.
func Process(ctx context.Context, run *Run) (*Scope, error) {
	if run == nil {
		return nil, ErrNilRun
	}
	run.prepare()

	ctx, span := otel.Tracer("daedalus/process").Start(ctx, "process.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", run.Scope.RunID),
		attribute.Int("run.processors", len(run.Processors)),
		attribute.Bool("run.flat", run.Flat),
	)

	nodes, err := run.execute(ctx)
	span.SetAttributes(
		attribute.Int("run.nodes", nodes),
		attribute.Int("run.errors", len(run.Scope.Errors)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return run.Scope, err
	}
	span.SetStatus(codes.Ok, "run completed")
	return run.Scope, nil
}

// ProcessSync runs a target that contains no suspending stage. It returns
// ErrSuspendingProcessor before touching the data otherwise.
func ProcessSync(run *Run) (*Scope, error) {
	if run == nil {
		return nil, ErrNilRun
	}
	for _, p := range run.Processors {
		if p.Suspends {
			return nil, fmt.Errorf("%w: %s", ErrSuspendingProcessor, p.Name)
		}
	}
	run.prepare()
	_, err := run.execute(context.Background())
	return run.Scope, err
}

func (r *Run) prepare() {
	if r.Data == nil {
		r.Data = map[string]interface{}{}
	}
	if r.Scope == nil {
		r.Scope = NewScope()
	}
}

func (r *Run) execute(ctx context.Context) (int, error) {
	logger := r.Options.logger().With(zap.String("run_id", r.Scope.RunID))
	nodes := 0

	err := components.EachComponentDataContext(ctx, r.Components, r.Data,
		func(ctx context.Context, c *components.Component, data, row map[string]interface{}, path string, siblings []*components.Component, index int) (components.Directive, error) {
			nodes++
			node := r.newContext(c, siblings, row, path, index)
			directive, err := ProcessOne(ctx, node, r.Processors)
			if err != nil {
				return directive, err
			}
			if r.Flat {
				return components.SkipChildren, nil
			}
			return directive, nil
		})
	if err != nil {
		logger.Debug("run aborted", zap.Int("nodes", nodes), zap.Error(err))
		return nodes, err
	}

	root := r.newContext(nil, r.Components, r.Data, "", components.NoIndex)
	for _, p := range r.Processors {
		if p.PostProcess == nil {
			continue
		}
		root.Processor = p.Name
		if err := p.PostProcess(ctx, root); err != nil {
			return nodes, &StageError{Processor: p.Name, Path: "", Cause: err}
		}
	}

	logger.Debug("run completed",
		zap.Int("nodes", nodes),
		zap.Int("errors", len(r.Scope.Errors)),
		zap.Int("calculated", len(r.Scope.Calculated)))
	return nodes, nil
}

func (r *Run) newContext(c *components.Component, siblings []*components.Component, row map[string]interface{}, path string, index int) *Context {
	var instance interface{}
	if r.Instances != nil {
		instance = r.Instances[path]
	}
	return &Context{
		Component:   c,
		Components:  siblings,
		Data:        r.Data,
		Row:         row,
		Path:        path,
		Index:       index,
		Instance:    instance,
		Form:        r.Form,
		Options:     r.Options,
		Scope:       r.Scope,
		EvalContext: r.EvalContext,
	}
}
