package conditions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

func runConditions(t *testing.T, p process.ProcessorInfo, form string, data map[string]interface{}, extra ...process.ProcessorInfo) *process.Scope {
	t.Helper()
	list, err := components.Parse([]byte(form))
	require.NoError(t, err)
	scope, err := process.Process(context.Background(), &process.Run{
		Components: list,
		Data:       data,
		Processors: append([]process.ProcessorInfo{p}, extra...),
	})
	require.NoError(t, err)
	return scope
}

func hiddenPaths(scope *process.Scope) []string {
	var out []string
	for _, c := range scope.Conditionals {
		if c.ConditionallyHidden {
			out = append(out, c.Path)
		}
	}
	return out
}

func TestSimpleConditions(t *testing.T) {
	tests := []struct {
		name   string
		cond   string
		data   map[string]interface{}
		hidden bool
	}{
		{"legacy show when equal", `{"show":true,"when":"kind","eq":"a"}`, map[string]interface{}{"kind": "a"}, false},
		{"legacy hide when not equal", `{"show":true,"when":"kind","eq":"a"}`, map[string]interface{}{"kind": "b"}, true},
		{"legacy string show", `{"show":"false","when":"kind","eq":"a"}`, map[string]interface{}{"kind": "a"}, true},
		{"legacy number against string", `{"show":true,"when":"n","eq":"5"}`, map[string]interface{}{"n": 5.0}, false},
		{"all met", `{"show":true,"conjunction":"all","conditions":[
			{"component":"n","operator":"greaterThan","value":1},
			{"component":"kind","operator":"isEqual","value":"a"}]}`,
			map[string]interface{}{"n": 2.0, "kind": "a"}, false},
		{"all not met", `{"show":true,"conjunction":"all","conditions":[
			{"component":"n","operator":"greaterThan","value":1},
			{"component":"kind","operator":"isEqual","value":"a"}]}`,
			map[string]interface{}{"n": 2.0, "kind": "b"}, true},
		{"any met", `{"show":true,"conjunction":"any","conditions":[
			{"component":"n","operator":"lessThan","value":1},
			{"component":"kind","operator":"startsWith","value":"ab"}]}`,
			map[string]interface{}{"n": 2.0, "kind": "abc"}, false},
		{"hide when met", `{"show":false,"conditions":[{"component":"kind","operator":"isEmpty"}]}`,
			map[string]interface{}{}, true},
		{"select boxes checked", `{"show":true,"conditions":[{"component":"boxes","operator":"isEqual","value":"x"}]}`,
			map[string]interface{}{"boxes": map[string]interface{}{"x": true, "y": false}}, false},
		{"unsupported operator is not met", `{"show":true,"conditions":[{"component":"kind","operator":"matches","value":"a"}]}`,
			map[string]interface{}{"kind": "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := `[{"type":"textfield","key":"target","input":true,"conditional":` + tt.cond + `}]`
			scope := runConditions(t, SimpleProcessorInfo, form, tt.data)
			if tt.hidden {
				assert.Equal(t, []string{"target"}, hiddenPaths(scope))
			} else {
				assert.Empty(t, hiddenPaths(scope))
			}
		})
	}
}

func TestConditions_RowRelativeLookup(t *testing.T) {
	form := `[{"type":"datagrid","key":"rows","components":[
		{"type":"textfield","key":"kind","input":true},
		{"type":"textfield","key":"extra","input":true,"conditional":{"show":true,"when":"rows.kind","eq":"yes"}}
	]}]`
	data := map[string]interface{}{"rows": []interface{}{
		map[string]interface{}{"kind": "yes"},
		map[string]interface{}{"kind": "no"},
	}}

	scope := runConditions(t, SimpleProcessorInfo, form, data)
	assert.Equal(t, []string{"rows[1].extra"}, hiddenPaths(scope))
}

func TestConditions_HiddenSubtreeIsSkipped(t *testing.T) {
	form := `[
		{"type":"checkbox","key":"show","input":true},
		{"type":"container","key":"box","clearOnHide":true,"conditional":{"show":true,"when":"show","eq":true},"components":[
			{"type":"textfield","key":"inner","input":true}
		]},
		{"type":"textfield","key":"kept","input":true,"conditional":{"show":true,"when":"show","eq":true}}
	]`
	data := map[string]interface{}{
		"show": false,
		"box":  map[string]interface{}{"inner": "x"},
		"kept": "y",
	}

	var visited []string
	recorder := process.ProcessorInfo{
		Name: "recorder",
		Process: func(_ context.Context, c *process.Context) error {
			visited = append(visited, c.Path)
			return nil
		},
	}

	scope := runConditions(t, SimpleProcessorInfo, form, data, recorder)
	assert.Equal(t, []string{"box", "kept"}, hiddenPaths(scope))
	assert.NotContains(t, visited, "box.inner")
	assert.NotContains(t, data, "box", "clearOnHide removes the value")
	assert.Equal(t, "y", data["kept"], "clearOnHide must be explicit")
	assert.True(t, scope.IsHidden("box.inner"))
}

func TestCustomConditions(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		hidden bool
	}{
		{"shown", `show = data.age >= 18`, false},
		{"hidden", `show = data.age < 18`, true},
		{"no result keeps visible", `var unrelated = 1`, false},
		{"error keeps visible", `show = nope.nope`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := `[{"type":"textfield","key":"beer","input":true,"customConditional":"` + tt.expr + `"}]`
			scope := runConditions(t, CustomProcessorInfo, form, map[string]interface{}{"age": 30.0})
			assert.Equal(t, tt.hidden, scope.IsHidden("beer"))
		})
	}
}

func TestConditions_JSONLogic(t *testing.T) {
	form := `[{"type":"textfield","key":"t","input":true,"conditional":{"json":{"===":[{"var":"data.mode"},"on"]}}}]`

	scope := runConditions(t, ProcessorInfo, form, map[string]interface{}{"mode": "on"})
	assert.False(t, scope.IsHidden("t"))

	scope = runConditions(t, ProcessorInfo, form, map[string]interface{}{"mode": "off"})
	assert.True(t, scope.IsHidden("t"))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		expected interface{}
		op       Operator
		want     bool
	}{
		{"equal numbers", 5.0, "5", OpIsEqual, true},
		{"not equal", "a", "b", OpIsNotEqual, true},
		{"empty string", "", nil, OpIsEmpty, true},
		{"empty boxes", map[string]interface{}{"a": false}, nil, OpIsEmpty, true},
		{"not empty list", []interface{}{"x"}, nil, OpIsNotEmpty, true},
		{"list includes", []interface{}{"a", "b"}, "b", OpIncludes, true},
		{"string includes", "hello", "ell", OpIncludes, true},
		{"not includes", "hello", "z", OpNotIncludes, true},
		{"ends with", "hello", "lo", OpEndsWith, true},
		{"less or equal", 3.0, 3.0, OpLessThanOrEqual, true},
		{"greater or equal", "4", 5.0, OpGreaterThanOrEqual, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.actual, tt.expected, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Compare("a", 1.0, OpGreaterThan)
	var cmpErr *ComparisonError
	assert.ErrorAs(t, err, &cmpErr)
}
