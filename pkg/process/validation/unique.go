package validation

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/process"
)

// UniqueRule asks the configured UniqueChecker whether the value is already
// stored for the form.
var UniqueRule = Rule{
	Name: RuleUnique,
	ShouldValidate: func(c *process.Context) bool {
		return c.Component.Unique && !isEmpty(c.Component, c.Value())
	},
	Validate: func(ctx context.Context, c *process.Context) (*process.FieldError, error) {
		if c.Options == nil || c.Options.UniqueChecker == nil {
			return nil, fmt.Errorf("%w: %s", process.ErrNoUniqueChecker, c.Path)
		}
		unique, err := c.Options.UniqueChecker.IsUnique(ctx, process.UniqueQuery{
			Form:  c.Options.FormID,
			Path:  c.Path,
			Key:   c.Component.Key,
			Value: c.Value(),
		})
		if err != nil {
			return nil, fmt.Errorf("unique check: %w", err)
		}
		if unique {
			return nil, nil
		}
		return newError(c, RuleUnique, label(c)+" must be unique", nil), nil
	},
	Suspends: true,
}
