package evaluator

import (
	"fmt"

	"github.com/dop251/goja"
)

// Sandbox applies security restrictions to a VM
type Sandbox struct {
	securityLevel string
}

// NewSandbox creates a sandbox for the configured security level
func NewSandbox(config *Config) *Sandbox {
	return &Sandbox{securityLevel: config.SecurityLevel}
}

// Apply removes host globals and freezes built-ins
func (s *Sandbox) Apply(vm *goja.Runtime) error {
	if err := s.removeDangerousGlobals(vm); err != nil {
		return fmt.Errorf("failed to remove dangerous globals: %w", err)
	}
	if err := s.freezeBuiltins(vm); err != nil {
		return fmt.Errorf("failed to freeze built-ins: %w", err)
	}
	return nil
}

func (s *Sandbox) removeDangerousGlobals(vm *goja.Runtime) error {
	dangerous := []string{
		"require", "module", "exports", "process", "global",
		"__dirname", "__filename", "Buffer", "setImmediate", "clearImmediate",
		"XMLHttpRequest", "fetch", "WebSocket", "importScripts",
	}
	for _, name := range dangerous {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	if s.securityLevel == SecurityLevelStrict {
		return vm.Set("eval", func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(NewSecurityError("eval is not allowed in strict security mode")))
		})
	}
	return nil
}

func (s *Sandbox) freezeBuiltins(vm *goja.Runtime) error {
	if s.securityLevel == SecurityLevelPermissive {
		return nil
	}

	val, err := vm.RunString(`(function(obj) {
		if (obj) {
			Object.freeze(obj);
			if (obj.prototype) { Object.freeze(obj.prototype); }
		}
	})`)
	if err != nil {
		return fmt.Errorf("failed to create freeze function: %w", err)
	}
	freeze, ok := goja.AssertFunction(val)
	if !ok {
		return fmt.Errorf("freeze function is not a function")
	}

	for _, name := range []string{"Object", "Array", "Function", "String", "Number", "Boolean", "Date", "RegExp", "Error", "Math"} {
		obj := vm.Get(name)
		if obj == nil || goja.IsUndefined(obj) {
			continue
		}
		// A built-in that refuses to freeze is left as is.
		_, _ = freeze(goja.Undefined(), obj)
	}
	return nil
}
