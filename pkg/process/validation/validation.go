// Package validation checks submitted values against component rules and
// collects failures as field errors in the scope.
package validation

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Registry names.
const (
	Name       = "validate"
	CustomName = "validateCustom"
	ServerName = "validateServer"
)

// Rule is one validation check: a predicate gate and an evaluation that
// yields a field error or nil.
type Rule struct {
	Name           string
	ShouldValidate func(c *process.Context) bool
	Validate       func(ctx context.Context, c *process.Context) (*process.FieldError, error)
	// Suspends marks rules that call collaborators.
	Suspends bool
}

// Rule sets.
var (
	// ClientRules run wherever the evaluator target runs.
	ClientRules = []Rule{
		RequiredRule,
		MinLengthRule,
		MaxLengthRule,
		MinWordsRule,
		MaxWordsRule,
		PatternRule,
		MinRule,
		MaxRule,
		EmailRule,
		JSONRule,
		CustomRule,
	}

	// CustomRules hold the expression based rules only.
	CustomRules = []Rule{JSONRule, CustomRule}

	// ServerRules add the checks that need stored submissions.
	ServerRules = append(append([]Rule{}, ClientRules...), UniqueRule)
)

// Stage processors.
var (
	ProcessorInfo       = NewProcessor(Name, ClientRules)
	CustomProcessorInfo = NewProcessor(CustomName, CustomRules)
	ServerProcessorInfo = NewProcessor(ServerName, ServerRules)
)

// NewProcessor builds a validation stage running rules in order. The stage
// suspends when any rule does.
func NewProcessor(name string, rules []Rule) process.ProcessorInfo {
	suspends := false
	for _, r := range rules {
		suspends = suspends || r.Suspends
	}
	return process.ProcessorInfo{
		Name:          name,
		ShouldProcess: ShouldProcess,
		Suspends:      suspends,
		Process: func(ctx context.Context, c *process.Context) error {
			return Validate(ctx, c, rules)
		},
	}
}

// ShouldProcess skips layout components and conditionally hidden paths.
func ShouldProcess(c *process.Context) bool {
	if c.Component == nil || !c.Component.HasData() {
		return false
	}
	return !c.Scope.IsHidden(c.Path)
}

// Validate runs rules against the node and appends every failure to the
// scope. A failed required rule ends validation of the node.
func Validate(ctx context.Context, c *process.Context, rules []Rule) error {
	for _, rule := range rules {
		if rule.ShouldValidate != nil && !rule.ShouldValidate(c) {
			continue
		}
		fieldErr, err := rule.Validate(ctx, c)
		if err != nil {
			return err
		}
		if fieldErr == nil {
			continue
		}
		c.Scope.AddError(fieldErr)
		c.Logger().Debug("validation failed", zap.String("rule", rule.Name))
		if rule.Name == RuleRequired {
			return nil
		}
	}
	return nil
}

// newError builds a field error, preferring the component's custom message.
func newError(c *process.Context, rule, message string, setting interface{}) *process.FieldError {
	if v := c.Component.Validate; v != nil && v.CustomMessage != "" {
		message = evaluator.Interpolate(v.CustomMessage, c.BuildEvalContext())
	}
	return process.NewFieldError(c, rule, message, setting)
}

// label is the component label, honoring logic overrides.
func label(c *process.Context) string {
	if v, ok := c.Scope.Property(c.Path, "label"); ok {
		if s, isString := v.(string); isString && s != "" {
			return s
		}
	}
	if c.Component.Label != "" {
		return c.Component.Label
	}
	return c.Component.Key
}
