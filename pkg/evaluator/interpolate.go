package evaluator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/wehubfusion/Daedalus/pkg/pathutil"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Interpolate replaces {{ path }} tokens in template with the values found at
// path in data. Missing values render as the empty string.
func Interpolate(template string, data map[string]interface{}) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]
		value, ok := pathutil.Get(data, path)
		if !ok {
			return ""
		}
		return Format(value)
	})
}

// Format renders a document value as text.
func Format(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
