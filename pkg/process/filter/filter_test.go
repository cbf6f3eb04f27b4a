package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

func TestFilter(t *testing.T) {
	list, err := components.Parse([]byte(`[
		{"type":"textfield","key":"name","input":true},
		{"type":"textfield","key":"secret","input":true,"persistent":false},
		{"type":"textfield","key":"local","input":true,"persistent":"client-only"},
		{"type":"panel","key":"panel","components":[{"type":"textfield","key":"inPanel","input":true}]},
		{"type":"container","key":"box","components":[{"type":"textfield","key":"inner","input":true}]},
		{"type":"datagrid","key":"rows","components":[{"type":"number","key":"qty","input":true}]},
		{"type":"form","key":"sub","components":[{"type":"textfield","key":"subField","input":true}]}
	]`))
	require.NoError(t, err)

	data := map[string]interface{}{
		"name":    "n",
		"secret":  "s",
		"local":   "l",
		"inPanel": "p",
		"stray":   "x",
		"box":     map[string]interface{}{"inner": "i", "extra": "x"},
		"rows": []interface{}{
			map[string]interface{}{"qty": 1.0, "junk": true},
			map[string]interface{}{"qty": 2.0},
		},
		"sub": map[string]interface{}{
			"data": map[string]interface{}{"subField": "f", "leak": 1.0},
			"_id":  "abc",
		},
	}

	scope, err := process.ProcessSync(&process.Run{
		Components: list,
		Data:       data,
		Processors: []process.ProcessorInfo{ProcessorInfo},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"name":    "n",
		"inPanel": "p",
		"box":     map[string]interface{}{"inner": "i"},
		"rows": []interface{}{
			map[string]interface{}{"qty": 1.0},
			map[string]interface{}{"qty": 2.0},
		},
		"sub": map[string]interface{}{
			"data": map[string]interface{}{"subField": "f"},
			"_id":  "abc",
		},
	}, data)

	assert.Empty(t, scope.Errors)
	assert.Empty(t, scope.Calculated)
	assert.Empty(t, scope.DefaultValues)
}

func TestPostProcess_RemovesValuesWrittenAfterFilter(t *testing.T) {
	list, err := components.Parse([]byte(`[
		{"type":"textfield","key":"keep","input":true},
		{"type":"textfield","key":"secret","input":true,"persistent":false,"defaultValue":"dflt"},
		{"type":"textfield","key":"tmp","input":true,"persistent":"client-only","multiple":true},
		{"type":"datagrid","key":"rows","components":[
			{"type":"textfield","key":"note","input":true,"persistent":false}
		]}
	]`))
	require.NoError(t, err)

	data := map[string]interface{}{
		"keep":   "k",
		"secret": "dflt",
		"tmp":    []interface{}{},
		"rows": []interface{}{
			map[string]interface{}{"note": []interface{}{}},
			map[string]interface{}{},
		},
	}

	root := &process.Context{Components: list, Data: data, Processor: Name}
	require.NoError(t, PostProcess(context.Background(), root))

	assert.Equal(t, map[string]interface{}{
		"keep": "k",
		"rows": []interface{}{
			map[string]interface{}{},
			map[string]interface{}{},
		},
	}, data)
}
