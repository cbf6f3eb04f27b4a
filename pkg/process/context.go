package process

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/pathutil"
)

// Context is the per-node record handed to every stage. The orchestrator
// creates one per visited node.
type Context struct {
	Component  *components.Component
	Components []*components.Component
	Data       map[string]interface{}
	Row        map[string]interface{}
	Path       string
	Index      int
	Instance   interface{}
	Form       map[string]interface{}
	Options    *Options
	Scope      *Scope

	// EvalContext, when set, rewrites the evaluation context built for rule
	// expressions before they run.
	EvalContext func(map[string]interface{}) map[string]interface{}

	// Processor is the name of the stage currently running.
	Processor string

	directive components.Directive
}

// Value returns the current value at Path. Values written by earlier stages
// are visible.
func (c *Context) Value() interface{} {
	return pathutil.Value(c.Data, c.Path)
}

// HasValue reports whether Path exists in the data.
func (c *Context) HasValue() bool {
	return pathutil.Has(c.Data, c.Path)
}

// SetValue writes v at Path.
func (c *Context) SetValue(v interface{}) {
	if err := pathutil.Set(c.Data, c.Path, v); err != nil {
		c.Logger().Warn("failed to set value", zap.Error(err))
	}
}

// UnsetValue removes the value at Path.
func (c *Context) UnsetValue() {
	pathutil.Unset(c.Data, c.Path)
}

// SkipChildren tells the walker not to descend into this node's children.
func (c *Context) SkipChildren() {
	c.directive = components.SkipChildren
}

// Directive returns the traversal directive set by the stages so far.
func (c *Context) Directive() components.Directive {
	return c.directive
}

// Logger returns the run logger annotated with the node path.
func (c *Context) Logger() *zap.Logger {
	l := c.Options.logger().With(zap.String("path", c.Path))
	if c.Processor != "" {
		l = l.With(zap.String("processor", c.Processor))
	}
	if c.Scope != nil {
		l = l.With(zap.String("run_id", c.Scope.RunID))
	}
	return l
}

// Evaluator returns the configured rule evaluator.
func (c *Context) Evaluator() Evaluator {
	return c.Options.evaluator()
}

// BuildEvalContext returns the variables exposed to rule expressions for
// this node.
func (c *Context) BuildEvalContext() map[string]interface{} {
	var component map[string]interface{}
	if c.Component != nil {
		component = c.Component.Map()
	}
	evalCtx := map[string]interface{}{
		"component": component,
		"data":      c.Data,
		"row":       c.Row,
		"rowIndex":  float64(c.Index),
		"path":      c.Path,
		"value":     c.Value(),
		"instance":  c.Instance,
		"form":      c.Form,
		"options":   c.Options.evalMap(),
	}
	if c.EvalContext != nil {
		evalCtx = c.EvalContext(evalCtx)
	}
	return evalCtx
}

// Evaluate runs expr with the node's evaluation context plus extra
// variables, returning the value of outputKey.
func (c *Context) Evaluate(ctx context.Context, expr interface{}, extra map[string]interface{}, outputKey string) (interface{}, error) {
	evalCtx := c.BuildEvalContext()
	for k, v := range extra {
		evalCtx[k] = v
	}
	return c.Evaluator().Evaluate(ctx, expr, evalCtx, outputKey)
}
