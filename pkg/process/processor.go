package process

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
)

// ProcessFunc runs a stage against one node.
type ProcessFunc func(ctx context.Context, c *Context) error

// ShouldProcessFunc reports whether a stage applies to a node.
type ShouldProcessFunc func(c *Context) bool

// ProcessorInfo describes one named stage.
type ProcessorInfo struct {
	Name string

	// ShouldProcess gates the stage. A nil predicate always applies.
	ShouldProcess ShouldProcessFunc

	// Process runs the stage. The same function serves both drivers.
	Process ProcessFunc

	// Suspends marks stages that call collaborators and may block. Targets
	// containing one can only be driven by Process.
	Suspends bool

	// PostProcess, when set, runs once after the whole tree has been walked,
	// with a context rooted at the data document.
	PostProcess ProcessFunc
}

// Applies evaluates the stage predicate.
func (p ProcessorInfo) Applies(c *Context) bool {
	return p.ShouldProcess == nil || p.ShouldProcess(c)
}

// AnySuspends reports whether any processor in the list may suspend.
func AnySuspends(processors []ProcessorInfo) bool {
	for _, p := range processors {
		if p.Suspends {
			return true
		}
	}
	return false
}

// ProcessOne runs every applicable stage against c in list order and returns
// the traversal directive for the node.
//
// A stage returning ErrSkipStage is logged and the next stage runs. Any other
// error stops the node and is returned wrapped in a *StageError.
func ProcessOne(ctx context.Context, c *Context, processors []ProcessorInfo) (components.Directive, error) {
	for _, p := range processors {
		if err := ctx.Err(); err != nil {
			return c.directive, err
		}
		if p.Process == nil || !p.Applies(c) {
			continue
		}

		c.Processor = p.Name
		err := p.Process(ctx, c)
		c.Processor = ""
		if err == nil {
			continue
		}
		if errors.Is(err, ErrSkipStage) {
			c.Options.logger().Debug("stage skipped",
				zap.String("processor", p.Name),
				zap.String("path", c.Path),
				zap.Error(err))
			continue
		}
		return c.directive, &StageError{Processor: p.Name, Path: c.Path, Cause: err}
	}
	return c.directive, nil
}

// ProcessOneSync is the non-suspending form of ProcessOne. It refuses lists
// containing a suspending stage.
func ProcessOneSync(c *Context, processors []ProcessorInfo) (components.Directive, error) {
	if AnySuspends(processors) {
		return components.Continue, ErrSuspendingProcessor
	}
	return ProcessOne(context.Background(), c, processors)
}
