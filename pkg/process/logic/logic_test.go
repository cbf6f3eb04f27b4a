package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

func runLogic(t *testing.T, form string, data map[string]interface{}) *process.Scope {
	t.Helper()
	list, err := components.Parse([]byte(form))
	require.NoError(t, err)
	scope, err := process.ProcessSync(&process.Run{
		Components: list,
		Data:       data,
		Processors: []process.ProcessorInfo{ProcessorInfo},
	})
	require.NoError(t, err)
	return scope
}

func TestLogic_ValueActions(t *testing.T) {
	tests := []struct {
		name     string
		trigger  string
		action   string
		data     map[string]interface{}
		expected interface{}
	}{
		{
			name:     "javascript trigger",
			trigger:  `{"type":"javascript","javascript":"result = data.vip === true"}`,
			action:   `{"type":"value","value":"value = 'gold'"}`,
			data:     map[string]interface{}{"vip": true, "tier": "basic"},
			expected: "gold",
		},
		{
			name:     "trigger not fired",
			trigger:  `{"type":"javascript","javascript":"result = data.vip === true"}`,
			action:   `{"type":"value","value":"value = 'gold'"}`,
			data:     map[string]interface{}{"vip": false, "tier": "basic"},
			expected: "basic",
		},
		{
			name:     "json trigger",
			trigger:  `{"type":"json","json":{">":[{"var":"data.score"},10]}}`,
			action:   `{"type":"value","value":{"cat":["high-",{"var":"data.score"}]}}`,
			data:     map[string]interface{}{"score": 11.0, "tier": ""},
			expected: "high-11",
		},
		{
			name:     "simple trigger",
			trigger:  `{"type":"simple","simple":{"show":true,"when":"vip","eq":true}}`,
			action:   `{"type":"customAction","customAction":"value = value + '!'"}`,
			data:     map[string]interface{}{"vip": true, "tier": "basic"},
			expected: "basic!",
		},
		{
			name:     "event trigger never fires",
			trigger:  `{"type":"event","event":"click"}`,
			action:   `{"type":"value","value":"value = 'x'"}`,
			data:     map[string]interface{}{"tier": "basic"},
			expected: "basic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := `[{"type":"textfield","key":"tier","input":true,"logic":[{"name":"l","trigger":` + tt.trigger + `,"actions":[` + tt.action + `]}]}]`
			runLogic(t, form, tt.data)
			assert.Equal(t, tt.expected, tt.data["tier"])
		})
	}
}

func TestLogic_PropertyActions(t *testing.T) {
	form := `[
		{"type":"checkbox","key":"lock","input":true},
		{"type":"textfield","key":"name","input":true,"logic":[{
			"name":"lockdown",
			"trigger":{"type":"javascript","javascript":"result = data.lock"},
			"actions":[
				{"name":"req","type":"property","property":{"value":"validate.required","type":"boolean"},"state":true},
				{"name":"label","type":"property","property":{"value":"label","type":"string"},"text":"Locked by {{ data.owner }}"},
				{"name":"hide","type":"property","property":{"value":"hidden","type":"boolean"},"state":"true"}
			]
		}]}
	]`
	data := map[string]interface{}{"lock": true, "owner": "ops", "name": "x"}

	scope := runLogic(t, form, data)

	required, ok := scope.Property("name", "validate.required")
	require.True(t, ok)
	assert.Equal(t, true, required)

	label, ok := scope.Property("name", "label")
	require.True(t, ok)
	assert.Equal(t, "Locked by ops", label)

	assert.True(t, scope.IsHidden("name"))
	assert.Equal(t, "lockdown", scope.Properties[0].Logic)
}
