package conditions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator is a comparison used by simple conditional clauses.
type Operator string

const (
	OpIsEqual            Operator = "isEqual"
	OpIsNotEqual         Operator = "isNotEqual"
	OpIsEmpty            Operator = "isEmpty"
	OpIsNotEmpty         Operator = "isNotEmpty"
	OpIncludes           Operator = "includes"
	OpNotIncludes        Operator = "notIncludes"
	OpStartsWith         Operator = "startsWith"
	OpEndsWith           Operator = "endsWith"
	OpLessThan           Operator = "lessThan"
	OpGreaterThan        Operator = "greaterThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
)

// ComparisonError is returned for operators that cannot be applied.
type ComparisonError struct {
	Operator string
	Message  string
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("comparison %s: %s", e.Operator, e.Message)
}

// Compare applies op to the actual and expected values.
func Compare(actual, expected interface{}, op Operator) (bool, error) {
	switch op {
	case OpIsEqual:
		return isEqual(actual, expected), nil
	case OpIsNotEqual:
		return !isEqual(actual, expected), nil
	case OpIsEmpty:
		return isEmptyValue(actual), nil
	case OpIsNotEmpty:
		return !isEmptyValue(actual), nil
	case OpIncludes:
		return includes(actual, expected), nil
	case OpNotIncludes:
		return !includes(actual, expected), nil
	case OpStartsWith:
		return strings.HasPrefix(toString(actual), toString(expected)), nil
	case OpEndsWith:
		return strings.HasSuffix(toString(actual), toString(expected)), nil
	case OpLessThan, OpGreaterThan, OpLessThanOrEqual, OpGreaterThanOrEqual:
		return compareNumbers(actual, expected, op)
	default:
		return false, &ComparisonError{Operator: string(op), Message: "unsupported operator"}
	}
}

func compareNumbers(actualValue, expectedValue interface{}, op Operator) (bool, error) {
	actual, err := toFloat64(actualValue)
	if err != nil {
		return false, &ComparisonError{Operator: string(op), Message: fmt.Sprintf("actual value conversion failed: %v", err)}
	}
	expected, err := toFloat64(expectedValue)
	if err != nil {
		return false, &ComparisonError{Operator: string(op), Message: fmt.Sprintf("expected value conversion failed: %v", err)}
	}

	switch op {
	case OpLessThan:
		return actual < expected, nil
	case OpGreaterThan:
		return actual > expected, nil
	case OpLessThanOrEqual:
		return actual <= expected, nil
	default:
		return actual >= expected, nil
	}
}

// isEqual compares loosely. Select boxes match when the expected option is
// checked and lists match when any element does.
func isEqual(actual, expected interface{}) bool {
	switch v := actual.(type) {
	case map[string]interface{}:
		if key, ok := expected.(string); ok {
			checked, _ := v[key].(bool)
			return checked
		}
	case []interface{}:
		if _, isList := expected.([]interface{}); !isList {
			for _, item := range v {
				if valuesEqual(item, expected) {
					return true
				}
			}
			return false
		}
	}
	return valuesEqual(actual, expected)
}

func includes(actual, expected interface{}) bool {
	if list, ok := actual.([]interface{}); ok {
		for _, item := range list {
			if valuesEqual(item, expected) {
				return true
			}
		}
		return false
	}
	return strings.Contains(toString(actual), toString(expected))
}

// isEmptyValue treats nil, empty strings, collections and unchecked select
// boxes as empty.
func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		for _, item := range v {
			if b, ok := item.(bool); !ok || b {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func valuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	aFloat, aErr := toFloat64(a)
	bFloat, bErr := toFloat64(b)
	if aErr == nil && bErr == nil {
		return aFloat == bFloat
	}
	return toString(a) == toString(b)
}

func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to number: %w", v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert type %T to number", value)
	}
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
