package process

import (
	"errors"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/components"
)

// Common errors returned by the pipeline.
var (
	// ErrSkipStage is returned by a stage that could not apply to the current
	// node. The stage runner logs it and moves on to the next stage.
	ErrSkipStage = errors.New("stage skipped")

	// ErrSuspendingProcessor is returned by ProcessSync when the target
	// contains a processor that may suspend.
	ErrSuspendingProcessor = errors.New("processor may suspend and requires the context driver")

	// ErrNilRun is returned when Process or ProcessSync is called without a run.
	ErrNilRun = errors.New("run is nil")

	// ErrUnknownProcessor is returned when a target names an unregistered processor.
	ErrUnknownProcessor = errors.New("unknown processor")

	// ErrDuplicateProcessor is returned when a processor name is registered twice.
	ErrDuplicateProcessor = errors.New("processor already registered")

	// ErrNoFetcher is returned by stages that need a Fetcher when none is configured.
	ErrNoFetcher = errors.New("no fetcher configured")

	// ErrNoUniqueChecker is returned by stages that need a UniqueChecker when none is configured.
	ErrNoUniqueChecker = errors.New("no unique checker configured")
)

// StageError wraps an error returned by a stage with the node it failed on.
type StageError struct {
	// Processor is the name of the failing stage
	Processor string
	// Path is the data path of the node being processed
	Path string
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("processor %s failed at %q: %v", e.Processor, e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// ErrorContext describes where a validation failure happened.
type ErrorContext struct {
	Path  string      `json:"path"`
	Key   string      `json:"key"`
	Label string      `json:"label,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Index int         `json:"index"`
	// Setting is the rule parameter that was violated, e.g. the configured minLength.
	Setting interface{} `json:"setting,omitempty"`
}

// FieldError is a validation failure. Validation stages collect these in
// Scope.Errors; they are never returned as Go errors by the pipeline.
type FieldError struct {
	Component *components.Component `json:"-"`
	Rule      string                `json:"rule"`
	Message   string                `json:"message"`
	Context   ErrorContext          `json:"context"`
}

// Error implements the error interface so field errors can be logged.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Context.Path, e.Message, e.Rule)
}

// NewFieldError creates a field error for the node in c.
func NewFieldError(c *Context, rule, message string, setting interface{}) *FieldError {
	label := ""
	key := ""
	if c.Component != nil {
		label = c.Component.Label
		key = c.Component.Key
		if label == "" {
			label = key
		}
	}
	return &FieldError{
		Component: c.Component,
		Rule:      rule,
		Message:   message,
		Context: ErrorContext{
			Path:    c.Path,
			Key:     key,
			Label:   label,
			Value:   c.Value(),
			Index:   c.Index,
			Setting: setting,
		},
	}
}
