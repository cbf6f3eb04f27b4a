package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/evaluator"
)

// Input is what a transform sees of one node.
type Input struct {
	Component *components.Component
	Value     interface{}
	Present   bool
	Path      string
	Locale    string
	// Default returns the default value injected at a path earlier in the run.
	Default func(path string) (interface{}, bool)
}

// Transform normalizes the value of one component kind.
type Transform func(in Input) Result

// transforms is the kind dispatch table.
var transforms = map[components.Kind]Transform{
	components.KindAddress:     normalizeAddress,
	components.KindDay:         normalizeDay,
	components.KindEmail:       normalizeEmail,
	components.KindRadio:       normalizeRadio,
	components.KindSelect:      normalizeSelect,
	components.KindSelectBoxes: normalizeSelectBoxes,
	components.KindTags:        normalizeTags,
	components.KindTextField:   normalizeTextField,
}

// TransformFor returns the transform registered for kind.
func TransformFor(kind components.Kind) (Transform, bool) {
	t, ok := transforms[kind]
	return t, ok
}

func normalizeAddress(in Input) Result {
	obj, ok := in.Value.(map[string]interface{})
	if in.Component.Multiple || !in.Component.EnableManualMode || !ok || len(obj) == 0 {
		return Ok(in.Value)
	}
	// Formio's own check wraps only values that already carry a mode; this
	// wraps the bare address instead so the transform stays idempotent.
	if _, hasMode := obj["mode"]; hasMode {
		return Ok(in.Value)
	}
	return Ok(map[string]interface{}{
		"mode":    "autocomplete",
		"address": obj,
	})
}

var dayMask = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

func normalizeDay(in Input) Result {
	s, ok := in.Value.(string)
	if !ok || s == "" || dayMask.MatchString(s) {
		return Ok(in.Value)
	}

	c := in.Component
	dayFirst := c.DayFirst
	if c.UseLocaleSettings {
		dayFirst = DayFirst(in.Locale)
	}
	showDay, showMonth, showYear := true, true, true
	if c.Fields != nil {
		showDay = !c.Fields.Day.Hide
		showMonth = !c.Fields.Month.Hide
		showYear = !c.Fields.Year.Hide
	}

	// Default parts are indexed by the configured order, not the locale one.
	dayIdx, monthIdx, yearIdx := 1, 0, 2
	if c.DayFirst {
		dayIdx, monthIdx = 0, 1
	}
	var defaults []string
	if d, ok := c.DefaultValue.(string); ok && d != "" {
		defaults = strings.Split(d, "/")
	}
	fallback := func(idx int, zero string) string {
		if defaults == nil {
			return zero
		}
		if idx < len(defaults) {
			return defaults[idx]
		}
		return ""
	}

	parts := strings.Split(s, "/")
	var out []string
	next := func(take bool, def string) {
		if !take {
			out = append(out, def)
			return
		}
		if len(parts) == 0 {
			out = append(out, "")
			return
		}
		out = append(out, parts[0])
		parts = parts[1:]
	}

	if dayFirst {
		next(showDay, fallback(dayIdx, "00"))
	}
	next(showMonth, fallback(monthIdx, "00"))
	if !dayFirst {
		next(showDay, fallback(dayIdx, "00"))
	}
	next(showYear, fallback(yearIdx, "0000"))

	return Ok(strings.Join(out, "/"))
}

var lower = cases.Lower(language.Und)

func normalizeEmail(in Input) Result {
	if s, ok := in.Value.(string); ok && s != "" {
		return Ok(lower.String(s))
	}
	return Ok(in.Value)
}

func normalizeRadio(in Input) Result {
	switch v := in.Value.(type) {
	case string:
		if n, ok := parseCanonicalNumber(v); ok {
			return Ok(n)
		}
		switch v {
		case "true":
			return Ok(true)
		case "false":
			return Ok(false)
		}
	}
	return Ok(in.Value)
}

func normalizeSelect(in Input) Result {
	if list, ok := in.Value.([]interface{}); ok && in.Component.Multiple {
		out := make([]interface{}, len(list))
		for i, item := range list {
			r := normalizeSingleSelect(in.Component.DataType, item)
			if r.Warning != nil {
				return Fallback(in.Value, r.Warning)
			}
			out[i] = r.Value
		}
		return Ok(out)
	}
	return normalizeSingleSelect(in.Component.DataType, in.Value)
}

func normalizeSingleSelect(dataType string, value interface{}) Result {
	if value == nil {
		return Ok(nil)
	}
	if m, ok := value.(map[string]interface{}); ok && len(m) == 0 {
		return Ok(value)
	}

	switch dataType {
	case "", "auto":
		if isObject(value) {
			return Ok(value)
		}
		return Ok(toBoolean(toNumber(jsString(value), jsString(value))))
	case "number":
		return Ok(toNumber(value, jsString(value)))
	case "boolean":
		return Ok(toBoolean(value))
	case "string":
		return Ok(jsString(value))
	case "object":
		return Ok(value)
	default:
		return Fallback(value, fmt.Errorf("unknown select data type %q", dataType))
	}
}

// toNumber converts v when its text form is the canonical form of a finite
// number. original is the text the result is compared against.
func toNumber(v interface{}, original string) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s == "" {
		return v
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return v
	}
	if original != formatNumber(n) {
		return v
	}
	return n
}

func toBoolean(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

func normalizeSelectBoxes(in Input) Result {
	switch v := in.Value.(type) {
	case map[string]interface{}:
		return Ok(v)
	case []interface{}:
		out := make(map[string]interface{}, len(v))
		for _, item := range v {
			out[jsString(item)] = true
		}
		return Ok(out)
	case string:
		return Ok(map[string]interface{}{v: true})
	case nil:
		if in.Present {
			return Ok(nil)
		}
		return Ok(map[string]interface{}{})
	default:
		return Ok(map[string]interface{}{})
	}
}

func normalizeTags(in Input) Result {
	delimiter := in.Component.Delimeter
	if delimiter == "" {
		delimiter = ","
	}
	switch v := in.Value.(type) {
	case []interface{}:
		if in.Component.StoreAs != "string" {
			return Ok(v)
		}
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = jsString(item)
		}
		return Ok(strings.Join(parts, delimiter))
	case string:
		if in.Component.StoreAs != "array" {
			return Ok(v)
		}
		out := []interface{}{}
		for _, part := range strings.Split(v, delimiter) {
			if part != "" {
				out = append(out, part)
			}
		}
		return Ok(out)
	default:
		return Ok(in.Value)
	}
}

func normalizeTextField(in Input) Result {
	c := in.Component
	if !c.AllowMultipleMasks || len(c.InputMasks) == 0 {
		return Ok(in.Value)
	}
	if list, ok := in.Value.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = normalizeMask(in, item)
		}
		return Ok(out)
	}
	return Ok(normalizeMask(in, in.Value))
}

func normalizeMask(in Input, value interface{}) interface{} {
	obj, ok := value.(map[string]interface{})
	if !ok || !evaluator.Truthy(value) {
		return map[string]interface{}{
			"val":      value,
			"maskName": in.Component.InputMasks[0].Label,
		}
	}
	if evaluator.Truthy(obj["val"]) || in.Default == nil {
		return obj
	}
	if def, found := in.Default(in.Path); found {
		if list, isList := def.([]interface{}); isList && len(list) > 0 {
			def = list[0]
		}
		obj["val"] = def
	}
	return obj
}

// parseCanonicalNumber parses s when it is the canonical text of a finite number.
func parseCanonicalNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, formatNumber(n) == s
}

// formatNumber renders n the way JavaScript's Number#toString does.
func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		// JavaScript writes 1e-7 and 1e+21 where Go writes 1e-07.
		s := strconv.FormatFloat(n, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// jsString renders v the way JavaScript's String() does.
func jsString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case []interface{}:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = jsString(item)
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		return "[object Object]"
	default:
		return fmt.Sprint(x)
	}
}

func isObject(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}
