// Package normalize coerces submitted values into the canonical shape of
// their component kind.
package normalize

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Name is the registry name of the stage.
const Name = "normalize"

// ProcessorInfo is the normalize stage.
var ProcessorInfo = process.ProcessorInfo{
	Name:          Name,
	ShouldProcess: ShouldProcess,
	Process:       Process,
}

// ShouldProcess applies the stage to every component that owns data.
func ShouldProcess(c *process.Context) bool {
	return c.Component != nil && c.Component.HasData()
}

// Process normalizes the value at the node's path.
func Process(_ context.Context, c *process.Context) error {
	value, present := c.Value(), c.HasValue()
	in := Input{
		Component: c.Component,
		Value:     value,
		Present:   present,
		Path:      c.Path,
	}
	if c.Scope != nil {
		in.Default = c.Scope.DefaultValue
	}
	if c.Options != nil {
		in.Locale = c.Options.Language
	}

	r := Normalize(in)
	if r.Warning != nil {
		c.Logger().Warn("value kept as submitted", zap.Error(r.Warning))
	}
	if present || r.Value != nil {
		c.SetValue(r.Value)
	}
	return nil
}

// Normalize applies the kind transform. A multiple-value component whose
// submitted value is not a list stores that submitted value wrapped in a
// list instead, or an empty list when it is falsy.
func Normalize(in Input) Result {
	r := Ok(in.Value)
	if t, ok := TransformFor(in.Component.Kind()); ok {
		r = t(in)
	}
	if in.Component.Multiple && in.Component.ModelType() == components.ModelValue {
		if _, isList := in.Value.([]interface{}); !isList {
			r.Value = wrapMultiple(in.Value)
		}
	}
	return r
}

func wrapMultiple(v interface{}) []interface{} {
	if evaluator.Truthy(v) {
		return []interface{}{v}
	}
	return []interface{}{}
}
