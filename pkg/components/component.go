// Package components holds the form schema model and the walker that pairs
// component definitions with the data document they describe.
package components

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Component is one node of a form definition. Definitions are owned by the
// caller and treated as read-only by the pipeline.
type Component struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	Label      string      `json:"label,omitempty"`
	Input      bool        `json:"input,omitempty"`
	Persistent interface{} `json:"persistent,omitempty"`
	Multiple   bool        `json:"multiple,omitempty"`
	Hidden     bool        `json:"hidden,omitempty"`
	Unique     bool        `json:"unique,omitempty"`

	DefaultValue       interface{} `json:"defaultValue,omitempty"`
	CustomDefaultValue interface{} `json:"customDefaultValue,omitempty"`
	CalculateValue     interface{} `json:"calculateValue,omitempty"`
	CalculateServer    bool        `json:"calculateServer,omitempty"`

	ClearOnHide       *bool        `json:"clearOnHide,omitempty"`
	Conditional       *Conditional `json:"conditional,omitempty"`
	CustomConditional interface{}  `json:"customConditional,omitempty"`
	Validate          *Validate    `json:"validate,omitempty"`
	Logic             []Logic      `json:"logic,omitempty"`

	Components []*Component  `json:"components,omitempty"`
	Columns    []Column      `json:"columns,omitempty"`
	Rows       [][]TableCell `json:"rows,omitempty"`

	// Day
	Fields            *DayFields `json:"fields,omitempty"`
	DayFirst          bool       `json:"dayFirst,omitempty"`
	UseLocaleSettings bool       `json:"useLocaleSettings,omitempty"`

	// Select
	DataType string `json:"dataType,omitempty"`

	// Tags
	Delimeter string `json:"delimeter,omitempty"`
	StoreAs   string `json:"storeas,omitempty"`

	// Text field masks
	InputMasks         []InputMask `json:"inputMasks,omitempty"`
	AllowMultipleMasks bool        `json:"allowMultipleMasks,omitempty"`

	// Address
	EnableManualMode bool `json:"enableManualMode,omitempty"`

	// Data source
	Trigger *Trigger     `json:"trigger,omitempty"`
	Fetch   *FetchConfig `json:"fetch,omitempty"`

	raw map[string]interface{}
}

// Column is one column of a columns layout.
type Column struct {
	Components []*Component `json:"components"`
	Width      int          `json:"width,omitempty"`
}

// TableCell is one cell of a table layout.
type TableCell struct {
	Components []*Component `json:"components"`
}

// DayFields configures which parts of a day component are shown.
type DayFields struct {
	Day   DayField `json:"day"`
	Month DayField `json:"month"`
	Year  DayField `json:"year"`
}

// DayField is one part of a day component.
type DayField struct {
	Hide bool `json:"hide,omitempty"`
}

// InputMask is a named input mask of a text field.
type InputMask struct {
	Label string `json:"label"`
	Mask  string `json:"mask"`
}

// Trigger controls when a data source component fetches.
type Trigger struct {
	Server bool `json:"server,omitempty"`
	Init   bool `json:"init,omitempty"`
}

// FetchConfig describes the request a data source component performs.
type FetchConfig struct {
	URL          string        `json:"url"`
	Method       string        `json:"method,omitempty"`
	Headers      []FetchHeader `json:"headers,omitempty"`
	Body         interface{}   `json:"specifyBody,omitempty"`
	MapPath      string        `json:"mapPath,omitempty"`
	MapFunction  interface{}   `json:"mapFunction,omitempty"`
	Authenticate bool          `json:"authenticate,omitempty"`
}

// FetchHeader is one request header, values may contain {{ }} interpolation.
type FetchHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Conditional is the simple or JSON visibility configuration.
type Conditional struct {
	Show        interface{} `json:"show,omitempty"`
	When        string      `json:"when,omitempty"`
	Eq          interface{} `json:"eq,omitempty"`
	Conjunction string      `json:"conjunction,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty"`
	JSON        interface{} `json:"json,omitempty"`
}

// Condition is one clause of a simple conditional.
type Condition struct {
	Component string      `json:"component"`
	Operator  string      `json:"operator"`
	Value     interface{} `json:"value,omitempty"`
}

// Validate is the validation rule set of a component.
type Validate struct {
	Required      bool        `json:"required,omitempty"`
	MinLength     Number      `json:"minLength,omitempty"`
	MaxLength     Number      `json:"maxLength,omitempty"`
	MinWords      Number      `json:"minWords,omitempty"`
	MaxWords      Number      `json:"maxWords,omitempty"`
	Min           Number      `json:"min,omitempty"`
	Max           Number      `json:"max,omitempty"`
	Pattern       string      `json:"pattern,omitempty"`
	Custom        string      `json:"custom,omitempty"`
	JSON          interface{} `json:"json,omitempty"`
	CustomMessage string      `json:"customMessage,omitempty"`
}

// Logic is one trigger/actions entry of a component.
type Logic struct {
	Name    string        `json:"name"`
	Trigger LogicTrigger  `json:"trigger"`
	Actions []LogicAction `json:"actions"`
}

// LogicTrigger decides whether the actions of a Logic entry run.
type LogicTrigger struct {
	Type       string       `json:"type"`
	Simple     *Conditional `json:"simple,omitempty"`
	Javascript string       `json:"javascript,omitempty"`
	JSON       interface{}  `json:"json,omitempty"`
}

// LogicAction changes a value or a property when its trigger fires.
type LogicAction struct {
	Name     string         `json:"name,omitempty"`
	Type     string         `json:"type"`
	Property *LogicProperty `json:"property,omitempty"`
	State    interface{}    `json:"state,omitempty"`
	Text     string         `json:"text,omitempty"`
	Value    interface{}    `json:"value,omitempty"`
	// CustomAction is a script whose `value` output replaces the value.
	CustomAction string `json:"customAction,omitempty"`
}

// LogicProperty names the component property a property action changes.
type LogicProperty struct {
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Number is an optional numeric setting. Form builders write these as numbers,
// numeric strings or empty strings, so decoding accepts all three.
type Number struct {
	Value float64
	Set   bool
}

// NewNumber returns a set Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// An unparsable setting is treated as unset.
		return nil
	}
	n.Value, n.Set = v, true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON keeps the full decoded definition next to the typed fields so
// evaluation contexts can expose properties the struct does not model.
func (c *Component) UnmarshalJSON(b []byte) error {
	type alias Component
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Component(a)
	c.raw = raw
	return nil
}

// Kind returns the component's Kind.
func (c *Component) Kind() Kind {
	return ParseKind(c.Type)
}

// ModelType returns where the component's value lives. Unknown types with
// children and no input flag are treated as layout.
func (c *Component) ModelType() ModelType {
	k := c.Kind()
	if k != KindUnknown {
		return k.ModelType()
	}
	if !c.Input && (len(c.Components) > 0 || len(c.Columns) > 0 || len(c.Rows) > 0) {
		return ModelNone
	}
	return ModelValue
}

// HasData reports whether the component owns a slot in the data document.
func (c *Component) HasData() bool {
	return c.ModelType() != ModelNone && c.Key != ""
}

// IsPersistent reports whether the component's value is kept on submission.
func (c *Component) IsPersistent() bool {
	switch p := c.Persistent.(type) {
	case nil:
		return true
	case bool:
		return p
	case string:
		return p != "client-only" && p != "false"
	default:
		return true
	}
}

// Children returns nested components in declaration order, across the
// components, columns and table rows layouts.
func (c *Component) Children() []*Component {
	if len(c.Columns) == 0 && len(c.Rows) == 0 {
		return c.Components
	}
	out := make([]*Component, 0, len(c.Components))
	out = append(out, c.Components...)
	for _, col := range c.Columns {
		out = append(out, col.Components...)
	}
	for _, row := range c.Rows {
		for _, cell := range row {
			out = append(out, cell.Components...)
		}
	}
	return out
}

// HasValidation reports whether the component declares any validation rules.
func (c *Component) HasValidation() bool {
	return c.Validate != nil
}

// Map returns the definition as a generic map, for evaluation contexts.
func (c *Component) Map() map[string]interface{} {
	if c.raw != nil {
		return copyMap(c.raw)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return map[string]interface{}{"type": c.Type, "key": c.Key}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]interface{}{"type": c.Type, "key": c.Key}
	}
	return out
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Parse decodes a list of components, accepting either a bare array or a form
// object with a "components" property.
func Parse(b []byte) ([]*Component, error) {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var list []*Component
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var form struct {
		Components []*Component `json:"components"`
	}
	if err := json.Unmarshal(b, &form); err != nil {
		return nil, err
	}
	return form.Components, nil
}
