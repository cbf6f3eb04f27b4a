package defaultvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

func run(t *testing.T, form string, data map[string]interface{}, p process.ProcessorInfo) *process.Scope {
	t.Helper()
	list, err := components.Parse([]byte(form))
	require.NoError(t, err)
	scope, err := process.ProcessSync(&process.Run{
		Components: list,
		Data:       data,
		Processors: []process.ProcessorInfo{p},
	})
	require.NoError(t, err)
	return scope
}

func TestServerDefaultValue(t *testing.T) {
	form := `[
		{"type":"textfield","key":"name","input":true,"defaultValue":"anon"},
		{"type":"textfield","key":"set","input":true,"defaultValue":"ignored"},
		{"type":"select","key":"tags","input":true,"multiple":true,"defaultValue":"a"},
		{"type":"textfield","key":"custom","input":true,"customDefaultValue":"value = 'js'"},
		{"type":"textfield","key":"none","input":true}
	]`
	data := map[string]interface{}{"set": "kept"}

	scope := run(t, form, data, ServerProcessorInfo)

	assert.Equal(t, map[string]interface{}{
		"name": "anon",
		"set":  "kept",
		"tags": []interface{}{"a"},
	}, data)
	assert.Equal(t, []process.PathValue{
		{Path: "name", Value: "anon"},
		{Path: "tags", Value: []interface{}{"a"}},
	}, scope.DefaultValues)
}

func TestCustomDefaultValue(t *testing.T) {
	tests := []struct {
		name     string
		form     string
		data     map[string]interface{}
		expected interface{}
	}{
		{
			name:     "javascript",
			form:     `[{"type":"number","key":"n","input":true,"customDefaultValue":"value = data.base * 2"}]`,
			data:     map[string]interface{}{"base": 21.0},
			expected: 42.0,
		},
		{
			name:     "json logic",
			form:     `[{"type":"number","key":"n","input":true,"customDefaultValue":{"+":[{"var":"data.base"},1]}}]`,
			data:     map[string]interface{}{"base": 1.0},
			expected: 2.0,
		},
		{
			name:     "falls back to static",
			form:     `[{"type":"textfield","key":"n","input":true,"customDefaultValue":"value = null","defaultValue":"static"}]`,
			data:     map[string]interface{}{},
			expected: "static",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := run(t, tt.form, tt.data, CustomProcessorInfo)
			assert.Equal(t, tt.expected, tt.data["n"])
			require.Len(t, scope.DefaultValues, 1)
			assert.Equal(t, "n", scope.DefaultValues[0].Path)
		})
	}
}

func TestDefaultValue_DoesNotAliasDefinition(t *testing.T) {
	list, err := components.Parse([]byte(`[{"type":"container","key":"c","input":true,"defaultValue":{"a":1}}]`))
	require.NoError(t, err)

	data := map[string]interface{}{}
	_, err = process.ProcessSync(&process.Run{Components: list, Data: data, Processors: []process.ProcessorInfo{ProcessorInfo}})
	require.NoError(t, err)

	data["c"].(map[string]interface{})["a"] = 2.0
	assert.Equal(t, 1.0, list[0].DefaultValue.(map[string]interface{})["a"])
}
