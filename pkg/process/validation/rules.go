package validation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Rule names as they appear in field errors.
const (
	RuleRequired  = "required"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RuleMinWords  = "minWords"
	RuleMaxWords  = "maxWords"
	RulePattern   = "pattern"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleEmail     = "email"
	RuleJSON      = "jsonLogic"
	RuleCustom    = "custom"
	RuleUnique    = "unique"
)

// RequiredRule fails on empty values. Logic actions may override the
// component's required flag.
var RequiredRule = Rule{
	Name:           RuleRequired,
	ShouldValidate: required,
	Validate: func(_ context.Context, c *process.Context) (*process.FieldError, error) {
		if !isEmpty(c.Component, c.Value()) {
			return nil, nil
		}
		return newError(c, RuleRequired, label(c)+" is required", true), nil
	},
}

var (
	MinLengthRule = lengthRule(RuleMinLength, func(v *components.Validate) components.Number { return v.MinLength },
		func(n, limit int) bool { return n >= limit }, "%s must have at least %d characters.")
	MaxLengthRule = lengthRule(RuleMaxLength, func(v *components.Validate) components.Number { return v.MaxLength },
		func(n, limit int) bool { return n <= limit }, "%s must have no more than %d characters.")
	MinWordsRule = wordsRule(RuleMinWords, func(v *components.Validate) components.Number { return v.MinWords },
		func(n, limit int) bool { return n >= limit }, "%s must have at least %d words.")
	MaxWordsRule = wordsRule(RuleMaxWords, func(v *components.Validate) components.Number { return v.MaxWords },
		func(n, limit int) bool { return n <= limit }, "%s must have no more than %d words.")
	MinRule = numberRule(RuleMin, func(v *components.Validate) components.Number { return v.Min },
		func(n, limit float64) bool { return n >= limit }, "%s cannot be less than %s.")
	MaxRule = numberRule(RuleMax, func(v *components.Validate) components.Number { return v.Max },
		func(n, limit float64) bool { return n <= limit }, "%s cannot be greater than %s.")
)

// PatternRule requires string values to match validate.pattern entirely.
var PatternRule = Rule{
	Name: RulePattern,
	ShouldValidate: func(c *process.Context) bool {
		return c.Component.Validate != nil && c.Component.Validate.Pattern != "" && !isEmpty(c.Component, c.Value())
	},
	Validate: func(_ context.Context, c *process.Context) (*process.FieldError, error) {
		pattern := c.Component.Validate.Pattern
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			c.Logger().Warn("invalid validation pattern", zap.String("pattern", pattern), zap.Error(err))
			return nil, nil
		}
		for _, v := range values(c) {
			s, ok := v.(string)
			if ok && s != "" && !re.MatchString(s) {
				return newError(c, RulePattern, fmt.Sprintf("%s does not match the pattern %s", label(c), pattern), pattern), nil
			}
		}
		return nil, nil
	},
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailRule checks the shape of email component values.
var EmailRule = Rule{
	Name: RuleEmail,
	ShouldValidate: func(c *process.Context) bool {
		return c.Component.Kind() == components.KindEmail && !isEmpty(c.Component, c.Value())
	},
	Validate: func(_ context.Context, c *process.Context) (*process.FieldError, error) {
		for _, v := range values(c) {
			s, ok := v.(string)
			if ok && s != "" && !emailPattern.MatchString(s) {
				return newError(c, RuleEmail, label(c)+" must be a valid email.", nil), nil
			}
		}
		return nil, nil
	},
}

// CustomRule runs validate.custom. The script sets `valid` to true or to an
// error message.
var CustomRule = Rule{
	Name: RuleCustom,
	ShouldValidate: func(c *process.Context) bool {
		return c.Component.Validate != nil && strings.TrimSpace(c.Component.Validate.Custom) != ""
	},
	Validate: func(ctx context.Context, c *process.Context) (*process.FieldError, error) {
		result, err := c.Evaluate(ctx, c.Component.Validate.Custom, map[string]interface{}{"input": c.Value()}, "valid")
		if err != nil {
			return nil, err
		}
		switch v := result.(type) {
		case nil:
			return nil, nil
		case bool:
			if v {
				return nil, nil
			}
			return newError(c, RuleCustom, label(c)+" is invalid", nil), nil
		case string:
			if v == "" {
				return nil, nil
			}
			return process.NewFieldError(c, RuleCustom, v, nil), nil
		default:
			if evaluator.Truthy(v) {
				return nil, nil
			}
			return newError(c, RuleCustom, label(c)+" is invalid", nil), nil
		}
	},
}

func required(c *process.Context) bool {
	if v, ok := c.Scope.Property(c.Path, "validate.required"); ok {
		return evaluator.Truthy(v)
	}
	return c.Component.Validate != nil && c.Component.Validate.Required
}

func lengthRule(name string, setting func(*components.Validate) components.Number, ok func(n, limit int) bool, format string) Rule {
	return Rule{
		Name:           name,
		ShouldValidate: settingSet(setting),
		Validate: func(_ context.Context, c *process.Context) (*process.FieldError, error) {
			limit := int(setting(c.Component.Validate).Value)
			for _, v := range values(c) {
				s, isString := v.(string)
				if isString && s != "" && !ok(utf8.RuneCountInString(s), limit) {
					return newError(c, name, fmt.Sprintf(format, label(c), limit), limit), nil
				}
			}
			return nil, nil
		},
	}
}

func wordsRule(name string, setting func(*components.Validate) components.Number, ok func(n, limit int) bool, format string) Rule {
	return Rule{
		Name:           name,
		ShouldValidate: settingSet(setting),
		Validate: func(_ context.Context, c *process.Context) (*process.FieldError, error) {
			limit := int(setting(c.Component.Validate).Value)
			for _, v := range values(c) {
				s, isString := v.(string)
				if isString && s != "" && !ok(len(strings.Fields(s)), limit) {
					return newError(c, name, fmt.Sprintf(format, label(c), limit), limit), nil
				}
			}
			return nil, nil
		},
	}
}

func numberRule(name string, setting func(*components.Validate) components.Number, ok func(n, limit float64) bool, format string) Rule {
	return Rule{
		Name:           name,
		ShouldValidate: settingSet(setting),
		Validate: func(_ context.Context, c *process.Context) (*process.FieldError, error) {
			limit := setting(c.Component.Validate).Value
			for _, v := range values(c) {
				n, isNumber := toNumber(v)
				if isNumber && !ok(n, limit) {
					msg := fmt.Sprintf(format, label(c), strconv.FormatFloat(limit, 'f', -1, 64))
					return newError(c, name, msg, limit), nil
				}
			}
			return nil, nil
		},
	}
}

func settingSet(setting func(*components.Validate) components.Number) func(c *process.Context) bool {
	return func(c *process.Context) bool {
		return c.Component.Validate != nil && setting(c.Component.Validate).Set && !isEmpty(c.Component, c.Value())
	}
}

// values returns the elements of a multiple value, or the value itself.
func values(c *process.Context) []interface{} {
	v := c.Value()
	if list, ok := v.([]interface{}); ok && c.Component.Multiple {
		return list
	}
	return []interface{}{v}
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// isEmpty reports whether a value counts as missing for its component.
func isEmpty(comp *components.Component, v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return comp.Kind() == components.KindCheckbox && !x
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		if comp.Kind() == components.KindSelectBoxes {
			for _, checked := range x {
				if b, ok := checked.(bool); ok && b {
					return false
				}
			}
			return true
		}
		return len(x) == 0
	default:
		return false
	}
}
