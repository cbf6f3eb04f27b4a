// Package calculation evaluates calculateValue expressions and writes their
// results into the data document.
package calculation

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Name is the registry name of the stage.
const Name = "calculate"

// ProcessorInfo is the calculate stage.
var ProcessorInfo = process.ProcessorInfo{
	Name:          Name,
	ShouldProcess: ShouldProcess,
	Process:       Process,
}

// ShouldProcess is false without an expression, and on the server for
// components that did not opt in with calculateServer.
func ShouldProcess(c *process.Context) bool {
	if c.Component == nil || empty(c.Component.CalculateValue) {
		return false
	}
	if c.Options != nil && c.Options.Server && !c.Component.CalculateServer {
		return false
	}
	return true
}

// Process evaluates the expression with the current value reset to null. A
// nil result leaves the data untouched.
func Process(ctx context.Context, c *process.Context) error {
	value, err := c.Evaluate(ctx, c.Component.CalculateValue, map[string]interface{}{"value": nil}, "value")
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	c.Scope.Calculated = append(c.Scope.Calculated, process.PathValue{Path: c.Path, Value: value})
	c.SetValue(value)
	return nil
}

func empty(expr interface{}) bool {
	switch v := expr.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}
