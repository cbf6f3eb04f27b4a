package evaluator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrMalformedRule is returned under PolicyStrict when an expression cannot
// be evaluated.
var ErrMalformedRule = errors.New("malformed rule")

// ErrorType categorizes script failures.
type ErrorType string

const (
	ErrorTypeSyntax   ErrorType = "syntax_error"
	ErrorTypeRuntime  ErrorType = "runtime_error"
	ErrorTypeTimeout  ErrorType = "timeout_error"
	ErrorTypeSecurity ErrorType = "security_error"
	ErrorTypeInternal ErrorType = "internal_error"
	ErrorTypeLogic    ErrorType = "jsonlogic_error"
)

// ScriptError is a structured expression failure.
type ScriptError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// fromGojaError converts a goja failure into a ScriptError.
func fromGojaError(err error) *ScriptError {
	var compileErr *goja.CompilerSyntaxError
	if errors.As(err, &compileErr) {
		return &ScriptError{Type: ErrorTypeSyntax, Message: compileErr.Error()}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &ScriptError{Type: ErrorTypeTimeout, Message: interrupted.Error()}
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		scriptErr := &ScriptError{Type: ErrorTypeRuntime, Message: exc.Error()}
		msg := strings.ToLower(scriptErr.Message)
		switch {
		case strings.HasPrefix(msg, "syntaxerror"):
			scriptErr.Type = ErrorTypeSyntax
		case strings.Contains(msg, "not allowed") || strings.Contains(msg, "forbidden"):
			scriptErr.Type = ErrorTypeSecurity
		}
		return scriptErr
	}

	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		return scriptErr
	}
	return &ScriptError{Type: ErrorTypeInternal, Message: err.Error()}
}

// NewSecurityError creates a security error.
func NewSecurityError(message string) *ScriptError {
	return &ScriptError{Type: ErrorTypeSecurity, Message: message}
}
