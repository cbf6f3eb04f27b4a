package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

func component(t *testing.T, def string) *components.Component {
	t.Helper()
	list, err := components.Parse([]byte("[" + def + "]"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestNormalize_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		component string
		value     interface{}
		expected  interface{}
	}{
		{"radio numeric string", `{"type":"radio","key":"r"}`, "5", 5.0},
		{"radio true", `{"type":"radio","key":"r"}`, "true", true},
		{"radio false", `{"type":"radio","key":"r"}`, "false", false},
		{"radio text", `{"type":"radio","key":"r"}`, "hello", "hello"},
		{"radio leading zero stays text", `{"type":"radio","key":"r"}`, "05", "05"},
		{"radio small exponent", `{"type":"radio","key":"r"}`, "1e-7", 1e-7},
		{"radio padded exponent stays text", `{"type":"radio","key":"r"}`, "1e-07", "1e-07"},
		{"select number", `{"type":"select","key":"s","dataType":"number"}`, "42", 42.0},
		{"select number no round trip", `{"type":"select","key":"s","dataType":"number"}`, "42abc", "42abc"},
		{"select boolean", `{"type":"select","key":"s","dataType":"boolean"}`, "TRUE", true},
		{"select string", `{"type":"select","key":"s","dataType":"string"}`, 7.0, "7"},
		{"select auto number", `{"type":"select","key":"s"}`, "3.5", 3.5},
		{"select auto boolean", `{"type":"select","key":"s"}`, "false", false},
		{"select auto object", `{"type":"select","key":"s"}`, map[string]interface{}{"id": "x"}, map[string]interface{}{"id": "x"}},
		{"select nil", `{"type":"select","key":"s","dataType":"number"}`, nil, nil},
		{"select multiple", `{"type":"select","key":"s","dataType":"number","multiple":true}`,
			[]interface{}{"1", "2"}, []interface{}{1.0, 2.0}},
		{"email lowercased", `{"type":"email","key":"e"}`, "Jane.Doe@Example.COM", "jane.doe@example.com"},
		{"selectboxes string", `{"type":"selectboxes","key":"b"}`, "a", map[string]interface{}{"a": true}},
		{"selectboxes list", `{"type":"selectboxes","key":"b"}`, []interface{}{"a", "b"},
			map[string]interface{}{"a": true, "b": true}},
		{"selectboxes number", `{"type":"selectboxes","key":"b"}`, 3.0, map[string]interface{}{}},
		{"tags to array", `{"type":"tags","key":"t","storeas":"array"}`, "a,b,c", []interface{}{"a", "b", "c"}},
		{"tags to array drops empties", `{"type":"tags","key":"t","storeas":"array"}`, "a,,b", []interface{}{"a", "b"}},
		{"tags to string", `{"type":"tags","key":"t","storeas":"string"}`, []interface{}{"a", "b", "c"}, "a,b,c"},
		{"tags custom delimiter", `{"type":"tags","key":"t","storeas":"string","delimeter":";"}`,
			[]interface{}{"a", "b"}, "a;b"},
		{"address manual mode", `{"type":"address","key":"a","enableManualMode":true}`,
			map[string]interface{}{"street": "Main"},
			map[string]interface{}{"mode": "autocomplete", "address": map[string]interface{}{"street": "Main"}}},
		{"address already wrapped", `{"type":"address","key":"a","enableManualMode":true}`,
			map[string]interface{}{"mode": "manual", "address": map[string]interface{}{}},
			map[string]interface{}{"mode": "manual", "address": map[string]interface{}{}}},
		{"textfield mask wrap", `{"type":"textfield","key":"m","allowMultipleMasks":true,"inputMasks":[{"label":"Phone","mask":"999"}]}`,
			"123", map[string]interface{}{"val": "123", "maskName": "Phone"}},
		{"textfield without masks", `{"type":"textfield","key":"m"}`, "123", "123"},
		{"unknown kind untouched", `{"type":"signature","key":"x"}`, "data", "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Normalize(Input{Component: component(t, tt.component), Value: tt.value, Present: true})
			require.NoError(t, r.Warning)
			assert.Equal(t, tt.expected, r.Value)
		})
	}
}

func TestNormalize_UnknownSelectDataTypeFallsBack(t *testing.T) {
	r := Normalize(Input{Component: component(t, `{"type":"select","key":"s","dataType":"money"}`), Value: "5", Present: true})
	assert.Error(t, r.Warning)
	assert.Equal(t, "5", r.Value)
}

func TestNormalize_Idempotent(t *testing.T) {
	tests := []struct {
		name      string
		component string
		value     interface{}
	}{
		{"radio", `{"type":"radio","key":"r"}`, "5"},
		{"select auto", `{"type":"select","key":"s"}`, "true"},
		{"select number", `{"type":"select","key":"s","dataType":"number"}`, "42"},
		{"email", `{"type":"email","key":"e"}`, "A@B.C"},
		{"tags", `{"type":"tags","key":"t","storeas":"array"}`, "x,y"},
		{"selectboxes", `{"type":"selectboxes","key":"b"}`, []interface{}{"a"}},
		{"address", `{"type":"address","key":"a","enableManualMode":true}`, map[string]interface{}{"street": "Main"}},
		{"mask", `{"type":"textfield","key":"m","allowMultipleMasks":true,"inputMasks":[{"label":"L"}]}`, "v"},
		{"day", `{"type":"day","key":"d","fields":{"day":{"hide":true}}}`, "03/2024"},
		{"multiple", `{"type":"textfield","key":"m","multiple":true}`, "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := component(t, tt.component)
			once := Normalize(Input{Component: c, Value: tt.value, Present: true})
			twice := Normalize(Input{Component: c, Value: once.Value, Present: true})
			assert.Equal(t, once.Value, twice.Value)
		})
	}
}

func TestNormalize_MultipleWrapping(t *testing.T) {
	c := component(t, `{"type":"textfield","key":"m","multiple":true}`)

	assert.Equal(t, []interface{}{"x"}, Normalize(Input{Component: c, Value: "x", Present: true}).Value)
	assert.Equal(t, []interface{}{}, Normalize(Input{Component: c, Value: "", Present: true}).Value)
	assert.Equal(t, []interface{}{}, Normalize(Input{Component: c}).Value)
	assert.Equal(t, []interface{}{"a", "b"}, Normalize(Input{Component: c, Value: []interface{}{"a", "b"}, Present: true}).Value)

	tests := []struct {
		name      string
		component string
		value     interface{}
		expected  interface{}
	}{
		{"radio zero string", `{"type":"radio","key":"r","multiple":true}`, "0", []interface{}{"0"}},
		{"radio false string", `{"type":"radio","key":"r","multiple":true}`, "false", []interface{}{"false"}},
		{"select number zero string", `{"type":"select","key":"s","dataType":"number","multiple":true}`, "0", []interface{}{"0"}},
		{"select boolean false string", `{"type":"select","key":"s","dataType":"boolean","multiple":true}`, "false", []interface{}{"false"}},
		{"select zero", `{"type":"select","key":"s","dataType":"number","multiple":true}`, 0.0, []interface{}{}},
		{"select list still coerced", `{"type":"select","key":"s","dataType":"number","multiple":true}`,
			[]interface{}{"0"}, []interface{}{0.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Normalize(Input{Component: component(t, tt.component), Value: tt.value, Present: true})
			assert.Equal(t, tt.expected, r.Value)
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{0, "0"},
		{42, "42"},
		{-3.5, "-3.5"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{-2.5e-10, "-2.5e-10"},
		{1e21, "1e+21"},
		{1.5e300, "1.5e+300"},
		{123456789012345680000, "123456789012345680000"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatNumber(tt.in))
		})
	}
}

func TestNormalize_Day(t *testing.T) {
	tests := []struct {
		name      string
		component string
		locale    string
		value     interface{}
		expected  interface{}
	}{
		{"full mask passes through", `{"type":"day","key":"d"}`, "", "01/02/2024", "01/02/2024"},
		{"empty passes through", `{"type":"day","key":"d"}`, "", "", ""},
		{"hidden day gets zero", `{"type":"day","key":"d","fields":{"day":{"hide":true}}}`, "", "03/2024", "03/00/2024"},
		{"hidden day uses default", `{"type":"day","key":"d","defaultValue":"01/15/2023","fields":{"day":{"hide":true}}}`,
			"", "03/2024", "03/15/2024"},
		{"day first hidden year", `{"type":"day","key":"d","dayFirst":true,"fields":{"year":{"hide":true}}}`,
			"", "05/06", "05/06/0000"},
		{"locale day first", `{"type":"day","key":"d","useLocaleSettings":true,"fields":{"month":{"hide":true}}}`,
			"en-GB", "05/2024", "05/00/2024"},
		{"locale month first", `{"type":"day","key":"d","useLocaleSettings":true,"fields":{"month":{"hide":true}}}`,
			"en-US", "05/2024", "00/05/2024"},
		{"missing parts are empty", `{"type":"day","key":"d"}`, "", "5", "5//"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Normalize(Input{Component: component(t, tt.component), Value: tt.value, Present: true, Locale: tt.locale})
			assert.Equal(t, tt.expected, r.Value)
		})
	}
}

func TestNormalize_MaskBackfillsDefault(t *testing.T) {
	c := component(t, `{"type":"textfield","key":"m","allowMultipleMasks":true,"inputMasks":[{"label":"L"}]}`)
	defaults := func(path string) (interface{}, bool) {
		if path == "m" {
			return []interface{}{"fallback"}, true
		}
		return nil, false
	}

	r := Normalize(Input{
		Component: c,
		Value:     map[string]interface{}{"maskName": "L"},
		Present:   true,
		Path:      "m",
		Default:   defaults,
	})
	assert.Equal(t, map[string]interface{}{"maskName": "L", "val": "fallback"}, r.Value)
}

func TestDayFirst(t *testing.T) {
	tests := []struct {
		locale   string
		expected bool
	}{
		{"en-GB", true},
		{"en-US", false},
		{"en", false},
		{"de", true},
		{"fr", true},
		{"fr-CA", false},
		{"ja", false},
		{"sv-SE", false},
		{"not a locale!", false},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.expected, DayFirst(tt.locale))
		})
	}
}

func TestProcess_WritesThroughPipeline(t *testing.T) {
	list, err := components.Parse([]byte(`[
		{"type":"radio","key":"r","input":true},
		{"type":"tags","key":"t","input":true,"storeas":"array"},
		{"type":"selectboxes","key":"b","input":true},
		{"type":"textfield","key":"untouched","input":true},
		{"type":"panel","key":"p","components":[{"type":"email","key":"e","input":true}]}
	]`))
	require.NoError(t, err)

	data := map[string]interface{}{"r": "5", "t": "a,b,c", "e": "X@Y.Z"}
	_, err = process.ProcessSync(&process.Run{
		Components: list,
		Data:       data,
		Processors: []process.ProcessorInfo{ProcessorInfo},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"r": 5.0,
		"t": []interface{}{"a", "b", "c"},
		"b": map[string]interface{}{},
		"e": "x@y.z",
	}, data)
}
