package calculation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

func calculate(t *testing.T, form string, data map[string]interface{}, opts *process.Options) *process.Scope {
	t.Helper()
	list, err := components.Parse([]byte(form))
	require.NoError(t, err)
	scope, err := process.ProcessSync(&process.Run{
		Components: list,
		Data:       data,
		Options:    opts,
		Processors: []process.ProcessorInfo{ProcessorInfo},
	})
	require.NoError(t, err)
	return scope
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		form       string
		data       map[string]interface{}
		expected   map[string]interface{}
		calculated []process.PathValue
	}{
		{
			name:       "json logic constant",
			form:       `[{"type":"number","key":"a","calculateValue":{"+":[1,1]}}]`,
			data:       map[string]interface{}{},
			expected:   map[string]interface{}{"a": 2.0},
			calculated: []process.PathValue{{Path: "a", Value: 2.0}},
		},
		{
			name:       "javascript over data",
			form:       `[{"type":"number","key":"total","calculateValue":"value = data.price * data.qty"}]`,
			data:       map[string]interface{}{"price": 2.5, "qty": 4.0},
			expected:   map[string]interface{}{"price": 2.5, "qty": 4.0, "total": 10.0},
			calculated: []process.PathValue{{Path: "total", Value: 10.0}},
		},
		{
			name:       "row scoped",
			form:       `[{"type":"datagrid","key":"rows","components":[{"type":"number","key":"double","calculateValue":"value = row.n * 2"}]}]`,
			data:       map[string]interface{}{"rows": []interface{}{map[string]interface{}{"n": 1.0}, map[string]interface{}{"n": 5.0}}},
			expected:   map[string]interface{}{"rows": []interface{}{map[string]interface{}{"n": 1.0, "double": 2.0}, map[string]interface{}{"n": 5.0, "double": 10.0}}},
			calculated: []process.PathValue{{Path: "rows[0].double", Value: 2.0}, {Path: "rows[1].double", Value: 10.0}},
		},
		{
			name:       "current value is reset",
			form:       `[{"type":"textfield","key":"a","calculateValue":"value = value === null ? 'reset' : 'kept'"}]`,
			data:       map[string]interface{}{"a": "old"},
			expected:   map[string]interface{}{"a": "reset"},
			calculated: []process.PathValue{{Path: "a", Value: "reset"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := calculate(t, tt.form, tt.data, nil)
			assert.Equal(t, tt.expected, tt.data)
			assert.Equal(t, tt.calculated, scope.Calculated)
		})
	}
}

func TestCalculate_NullResultIsNoop(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"null", `"value = null"`},
		{"untouched", `"var x = 1"`},
		{"throws", `"value = missing.property"`},
		{"json logic null", `{"var":"data.missing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]interface{}{"a": "existing"}
			scope := calculate(t, `[{"type":"textfield","key":"a","calculateValue":`+tt.expr+`}]`, data, nil)
			assert.Equal(t, map[string]interface{}{"a": "existing"}, data)
			assert.Empty(t, scope.Calculated)
		})
	}
}

func TestCalculate_ServerGate(t *testing.T) {
	form := `[
		{"type":"number","key":"client","calculateValue":{"+":[1,1]}},
		{"type":"number","key":"server","calculateValue":{"+":[2,2]},"calculateServer":true}
	]`

	data := map[string]interface{}{}
	scope := calculate(t, form, data, &process.Options{Server: true})
	assert.Equal(t, map[string]interface{}{"server": 4.0}, data)
	assert.Len(t, scope.Calculated, 1)

	data = map[string]interface{}{}
	calculate(t, form, data, &process.Options{})
	assert.Equal(t, map[string]interface{}{"client": 2.0, "server": 4.0}, data)
}
