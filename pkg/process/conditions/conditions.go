// Package conditions decides conditional visibility. A hidden node is
// recorded in the scope and its subtree is not walked.
package conditions

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/pathutil"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Registry names.
const (
	Name       = "conditions"
	SimpleName = "simpleConditions"
	CustomName = "customConditions"
)

// ProcessorInfo evaluates simple, JSON and custom conditionals.
var ProcessorInfo = process.ProcessorInfo{
	Name: Name,
	ShouldProcess: func(c *process.Context) bool {
		return c.Component != nil && (hasSimple(c.Component) || hasJSON(c.Component) || hasCustom(c.Component))
	},
	Process: Process,
}

// SimpleProcessorInfo evaluates simple conditionals only. It never runs
// scripts, which makes it safe on the submission path.
var SimpleProcessorInfo = process.ProcessorInfo{
	Name: SimpleName,
	ShouldProcess: func(c *process.Context) bool {
		return c.Component != nil && hasSimple(c.Component)
	},
	Process: ProcessSimple,
}

// CustomProcessorInfo evaluates customConditional expressions only.
var CustomProcessorInfo = process.ProcessorInfo{
	Name: CustomName,
	ShouldProcess: func(c *process.Context) bool {
		return c.Component != nil && hasCustom(c.Component)
	},
	Process: ProcessCustom,
}

// Process hides the node when any configured conditional hides it.
func Process(ctx context.Context, c *process.Context) error {
	if hasSimple(c.Component) && !SimpleVisible(c, c.Component.Conditional) {
		Hide(c)
		return nil
	}
	if hasJSON(c.Component) {
		visible, err := evaluateVisible(ctx, c, c.Component.Conditional.JSON)
		if err != nil {
			return err
		}
		if !visible {
			Hide(c)
			return nil
		}
	}
	if hasCustom(c.Component) {
		return ProcessCustom(ctx, c)
	}
	return nil
}

// ProcessSimple is the simpleConditions stage.
func ProcessSimple(_ context.Context, c *process.Context) error {
	if !SimpleVisible(c, c.Component.Conditional) {
		Hide(c)
	}
	return nil
}

// ProcessCustom is the customConditions stage.
func ProcessCustom(ctx context.Context, c *process.Context) error {
	visible, err := evaluateVisible(ctx, c, c.Component.CustomConditional)
	if err != nil {
		return err
	}
	if !visible {
		Hide(c)
	}
	return nil
}

// Hide records the node as conditionally hidden, clears its value when
// clearOnHide is set and stops the walk from descending into it.
func Hide(c *process.Context) {
	c.Scope.Conditionals = append(c.Scope.Conditionals, process.Conditional{Path: c.Path, ConditionallyHidden: true})
	comp := c.Component
	if comp != nil && comp.ClearOnHide != nil && *comp.ClearOnHide && comp.HasData() {
		c.UnsetValue()
	}
	c.SkipChildren()
	c.Logger().Debug("component hidden")
}

// SimpleVisible evaluates a simple conditional. Conditionals without any
// clause leave the node visible.
func SimpleVisible(c *process.Context, cond *components.Conditional) bool {
	met, ok := Met(c, cond)
	if !ok {
		return true
	}
	show := parseShow(cond.Show)
	if met {
		return show
	}
	return !show
}

// Met reports whether the clauses of cond hold. ok is false when cond has
// no clauses.
func Met(c *process.Context, cond *components.Conditional) (met, ok bool) {
	if cond == nil {
		return false, false
	}
	if len(cond.Conditions) > 0 {
		matchAny := strings.EqualFold(cond.Conjunction, "any")
		for _, clause := range cond.Conditions {
			result, err := Compare(lookup(c, clause.Component), clause.Value, Operator(clause.Operator))
			if err != nil {
				c.Logger().Warn("condition clause ignored",
					zap.String("component", clause.Component),
					zap.Error(err))
				result = false
			}
			if matchAny && result {
				return true, true
			}
			if !matchAny && !result {
				return false, true
			}
		}
		return !matchAny, true
	}
	if cond.When != "" {
		return isEqual(lookup(c, cond.When), cond.Eq), true
	}
	return false, false
}

func evaluateVisible(ctx context.Context, c *process.Context, expr interface{}) (bool, error) {
	result, err := c.Evaluate(ctx, expr, nil, "show")
	if err != nil {
		return true, err
	}
	if result == nil {
		return true, nil
	}
	return evaluator.Truthy(result), nil
}

// lookup resolves a conditional's component reference relative to the row
// first, then the document, then by its last segment within the row.
func lookup(c *process.Context, path string) interface{} {
	if v, ok := pathutil.Get(c.Row, path); ok {
		return v
	}
	if v, ok := pathutil.Get(c.Data, path); ok {
		return v
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		if v, ok := pathutil.Get(c.Row, path[i+1:]); ok {
			return v
		}
	}
	return nil
}

func parseShow(show interface{}) bool {
	switch v := show.(type) {
	case nil:
		return true
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return evaluator.Truthy(v)
	}
}

func hasSimple(comp *components.Component) bool {
	cond := comp.Conditional
	return cond != nil && (cond.When != "" || len(cond.Conditions) > 0)
}

func hasJSON(comp *components.Component) bool {
	if comp.Conditional == nil {
		return false
	}
	rule, ok := comp.Conditional.JSON.(map[string]interface{})
	return ok && len(rule) > 0
}

func hasCustom(comp *components.Component) bool {
	switch v := comp.CustomConditional.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case map[string]interface{}:
		return len(v) > 0
	default:
		return false
	}
}
