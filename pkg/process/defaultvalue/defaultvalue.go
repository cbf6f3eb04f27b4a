// Package defaultvalue injects default values into absent slots of the data
// document and records where each one came from.
package defaultvalue

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Registry names.
const (
	Name       = "defaultValue"
	ServerName = "serverDefaultValue"
	CustomName = "customDefaultValue"
)

// ProcessorInfo applies the custom default first and falls back to the
// static one.
var ProcessorInfo = process.ProcessorInfo{
	Name:          Name,
	ShouldProcess: ShouldProcess,
	Process:       Process,
}

// ServerProcessorInfo applies static defaults only. It never evaluates
// expressions, so it does not suspend.
var ServerProcessorInfo = process.ProcessorInfo{
	Name:          ServerName,
	ShouldProcess: ShouldProcessServer,
	Process:       ProcessServer,
}

// CustomProcessorInfo is the evaluator target's default stage.
var CustomProcessorInfo = process.ProcessorInfo{
	Name:          CustomName,
	ShouldProcess: ShouldProcess,
	Process:       ProcessCustom,
}

// ShouldProcess applies when the component declares any default and has no
// value yet.
func ShouldProcess(c *process.Context) bool {
	if !absent(c) {
		return false
	}
	return hasStatic(c.Component) || hasCustom(c.Component)
}

// ShouldProcessServer applies when the component declares a static default
// and has no value yet.
func ShouldProcessServer(c *process.Context) bool {
	return absent(c) && hasStatic(c.Component)
}

// Process is the defaultValue stage.
func Process(ctx context.Context, c *process.Context) error {
	return apply(ctx, c, true)
}

// ProcessServer is the serverDefaultValue stage.
func ProcessServer(ctx context.Context, c *process.Context) error {
	return apply(ctx, c, false)
}

// ProcessCustom is the customDefaultValue stage.
func ProcessCustom(ctx context.Context, c *process.Context) error {
	return apply(ctx, c, true)
}

func apply(ctx context.Context, c *process.Context, custom bool) error {
	var value interface{}
	if custom && hasCustom(c.Component) {
		v, err := c.Evaluate(ctx, c.Component.CustomDefaultValue, map[string]interface{}{"value": nil}, "value")
		if err != nil {
			return err
		}
		value = v
	}
	if value == nil && hasStatic(c.Component) {
		value = evaluator.CopyValue(c.Component.DefaultValue)
	}
	if value == nil {
		return nil
	}

	if c.Component.Multiple && c.Component.ModelType() == components.ModelValue {
		if _, ok := value.([]interface{}); !ok {
			value = []interface{}{value}
		}
	}

	c.SetValue(value)
	c.Scope.DefaultValues = append(c.Scope.DefaultValues, process.PathValue{Path: c.Path, Value: value})
	c.Logger().Debug("default applied", zap.Bool("custom", custom && hasCustom(c.Component)))
	return nil
}

func absent(c *process.Context) bool {
	return c.Component != nil && c.Component.HasData() && !c.HasValue()
}

func hasStatic(comp *components.Component) bool {
	switch v := comp.DefaultValue.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

func hasCustom(comp *components.Component) bool {
	switch v := comp.CustomDefaultValue.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}
