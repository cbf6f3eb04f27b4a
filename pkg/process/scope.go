package process

import (
	"strings"

	"github.com/google/uuid"
)

// PathValue pairs a data path with a value.
type PathValue struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// Conditional records a visibility decision for a path.
type Conditional struct {
	Path                string `json:"path"`
	ConditionallyHidden bool   `json:"conditionallyHidden"`
}

// PropertyChange records a component property set by a logic action.
type PropertyChange struct {
	Path     string      `json:"path"`
	Logic    string      `json:"logic,omitempty"`
	Property string      `json:"property"`
	Value    interface{} `json:"value"`
}

// Scope accumulates the results of one pipeline run. Stages only append to
// it. A Scope belongs to a single run and must not be shared between
// concurrent runs.
type Scope struct {
	RunID         string           `json:"runId"`
	Calculated    []PathValue      `json:"calculated"`
	Errors        []*FieldError    `json:"errors"`
	DefaultValues []PathValue      `json:"defaultValues"`
	Conditionals  []Conditional    `json:"conditionals"`
	Fetched       []PathValue      `json:"fetched"`
	Properties    []PropertyChange `json:"properties"`
}

// NewScope returns an empty scope with a fresh run id.
func NewScope() *Scope {
	return &Scope{
		RunID:         uuid.New().String(),
		Calculated:    []PathValue{},
		Errors:        []*FieldError{},
		DefaultValues: []PathValue{},
		Conditionals:  []Conditional{},
		Fetched:       []PathValue{},
		Properties:    []PropertyChange{},
	}
}

// AddError appends a field error. Nil errors are ignored.
func (s *Scope) AddError(err *FieldError) {
	if err != nil {
		s.Errors = append(s.Errors, err)
	}
}

// ErrorsAt returns the field errors recorded for path.
func (s *Scope) ErrorsAt(path string) []*FieldError {
	var out []*FieldError
	for _, e := range s.Errors {
		if e.Context.Path == path {
			out = append(out, e)
		}
	}
	return out
}

// IsHidden reports whether path, or one of its ancestors, was conditionally
// hidden.
func (s *Scope) IsHidden(path string) bool {
	hidden := false
	for _, c := range s.Conditionals {
		switch {
		case c.Path == path:
			hidden = c.ConditionallyHidden
		case c.ConditionallyHidden && isDescendant(path, c.Path):
			return true
		}
	}
	return hidden
}

// DefaultValue returns the default injected at path, if any.
func (s *Scope) DefaultValue(path string) (interface{}, bool) {
	for i := len(s.DefaultValues) - 1; i >= 0; i-- {
		if s.DefaultValues[i].Path == path {
			return s.DefaultValues[i].Value, true
		}
	}
	return nil, false
}

// Property returns the last value a logic action set for property at path.
func (s *Scope) Property(path, property string) (interface{}, bool) {
	for i := len(s.Properties) - 1; i >= 0; i-- {
		p := s.Properties[i]
		if p.Path == path && p.Property == property {
			return p.Value, true
		}
	}
	return nil, false
}

func isDescendant(path, ancestor string) bool {
	if ancestor == "" || len(path) <= len(ancestor) || !strings.HasPrefix(path, ancestor) {
		return false
	}
	next := path[len(ancestor)]
	return next == '.' || next == '['
}
