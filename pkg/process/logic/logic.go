// Package logic runs component logic entries: a trigger decides whether the
// entry's actions change the value or a property of the component.
package logic

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
	"github.com/wehubfusion/Daedalus/pkg/process/conditions"
)

// Name is the registry name of the stage.
const Name = "logic"

// Trigger types.
const (
	TriggerSimple     = "simple"
	TriggerJavascript = "javascript"
	TriggerJSON       = "json"
	TriggerEvent      = "event"
)

// Action types.
const (
	ActionValue    = "value"
	ActionProperty = "property"
	ActionCustom   = "customAction"
)

// ProcessorInfo is the logic stage.
var ProcessorInfo = process.ProcessorInfo{
	Name: Name,
	ShouldProcess: func(c *process.Context) bool {
		return c.Component != nil && len(c.Component.Logic) > 0
	},
	Process: Process,
}

// Process evaluates every logic entry in order and applies the actions of
// those whose trigger fires.
func Process(ctx context.Context, c *process.Context) error {
	for _, entry := range c.Component.Logic {
		fired, err := Triggered(ctx, c, entry.Trigger)
		if err != nil {
			return fmt.Errorf("logic %q: %w", entry.Name, err)
		}
		if !fired {
			continue
		}
		for _, action := range entry.Actions {
			if err := apply(ctx, c, entry.Name, action); err != nil {
				return fmt.Errorf("logic %q action %q: %w", entry.Name, action.Name, err)
			}
		}
	}
	return nil
}

// Triggered reports whether a logic trigger fires for the node. Event
// triggers belong to live renderers and never fire here.
func Triggered(ctx context.Context, c *process.Context, trigger components.LogicTrigger) (bool, error) {
	switch trigger.Type {
	case TriggerSimple:
		if _, ok := conditions.Met(c, trigger.Simple); !ok {
			return false, nil
		}
		return conditions.SimpleVisible(c, trigger.Simple), nil
	case TriggerJavascript:
		return truthy(ctx, c, trigger.Javascript)
	case TriggerJSON:
		return truthy(ctx, c, trigger.JSON)
	default:
		return false, nil
	}
}

func truthy(ctx context.Context, c *process.Context, expr interface{}) (bool, error) {
	result, err := c.Evaluate(ctx, expr, nil, "result")
	if err != nil {
		return false, err
	}
	return evaluator.Truthy(result), nil
}

func apply(ctx context.Context, c *process.Context, logicName string, action components.LogicAction) error {
	switch action.Type {
	case ActionValue:
		return setValue(ctx, c, action.Value)
	case ActionCustom:
		return setValue(ctx, c, action.CustomAction)
	case ActionProperty:
		if action.Property == nil || action.Property.Value == "" {
			return nil
		}
		value := propertyValue(c, action)
		c.Scope.Properties = append(c.Scope.Properties, process.PropertyChange{
			Path:     c.Path,
			Logic:    logicName,
			Property: action.Property.Value,
			Value:    value,
		})
		if action.Property.Value == "hidden" && evaluator.Truthy(value) {
			conditions.Hide(c)
		}
		return nil
	default:
		c.Logger().Debug("logic action not supported", zap.String("type", action.Type))
		return nil
	}
}

func setValue(ctx context.Context, c *process.Context, expr interface{}) error {
	value, err := c.Evaluate(ctx, expr, nil, "value")
	if err != nil {
		return err
	}
	if value != nil {
		c.SetValue(value)
	}
	return nil
}

func propertyValue(c *process.Context, action components.LogicAction) interface{} {
	if action.Property.Type == "string" {
		return evaluator.Interpolate(action.Text, c.BuildEvalContext())
	}
	switch v := action.State.(type) {
	case string:
		return v == "true"
	default:
		return evaluator.Truthy(v)
	}
}
