package validation

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// JSONRule evaluates validate.json with {data, input} and reads `valid`.
// A nil or true result passes; anything else is the error message.
var JSONRule = Rule{
	Name:           RuleJSON,
	ShouldValidate: shouldValidateJSON,
	Validate:       validateJSON,
}

func shouldValidateJSON(c *process.Context) bool {
	if c.Component.Validate == nil || !evaluator.Truthy(c.Value()) {
		return false
	}
	_, ok := c.Component.Validate.JSON.(map[string]interface{})
	return ok
}

func validateJSON(ctx context.Context, c *process.Context) (*process.FieldError, error) {
	value := c.Value()
	evalCtx := map[string]interface{}{
		"data":  c.Data,
		"input": value,
	}
	result, err := c.Evaluator().Evaluate(ctx, c.Component.Validate.JSON, evalCtx, "valid")
	if err != nil {
		return nil, err
	}
	if result == nil || result == true {
		return nil, nil
	}
	message := RuleJSON
	if evaluator.Truthy(result) {
		message = evaluator.Format(result)
	}
	return process.NewFieldError(c, RuleJSON, message, nil), nil
}
