package evaluator

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Utility is a helper module exposed to expressions
type Utility interface {
	// Name returns the unique name of the utility
	Name() string

	// Register installs the utility in the VM
	Register(vm *goja.Runtime) error

	// AllowedSecurityLevels returns the security levels that allow this utility
	AllowedSecurityLevels() []string
}

// UtilityRegistry holds the available utilities
type UtilityRegistry struct {
	utilities map[string]Utility
	mu        sync.RWMutex
}

// NewUtilityRegistry creates a registry with the built-in utilities. Console
// output goes to logger at debug level.
func NewUtilityRegistry(logger *zap.Logger) *UtilityRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &UtilityRegistry{utilities: make(map[string]Utility)}
	r.Register(&ConsoleUtility{logger: logger})
	r.Register(&EncodingUtility{})
	return r
}

// Register adds a utility to the registry
func (r *UtilityRegistry) Register(utility Utility) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utilities[utility.Name()] = utility
}

// RegisterEnabled installs every enabled utility allowed at the configured level
func (r *UtilityRegistry) RegisterEnabled(vm *goja.Runtime, config *Config) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range config.EnabledUtilities {
		utility, ok := r.utilities[name]
		if !ok || !allowedAt(utility, config.SecurityLevel) {
			continue
		}
		if err := utility.Register(vm); err != nil {
			return fmt.Errorf("failed to register utility %s: %w", name, err)
		}
	}
	return nil
}

func allowedAt(utility Utility, level string) bool {
	for _, l := range utility.AllowedSecurityLevels() {
		if l == level {
			return true
		}
	}
	return false
}

// ConsoleUtility provides console.log and friends
type ConsoleUtility struct {
	logger *zap.Logger
}

func (u *ConsoleUtility) Name() string { return "console" }

func (u *ConsoleUtility) AllowedSecurityLevels() []string {
	return []string{SecurityLevelStandard, SecurityLevelPermissive}
}

func (u *ConsoleUtility) Register(vm *goja.Runtime) error {
	console := vm.NewObject()

	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			u.logger.Debug("expression console output",
				zap.String("level", level),
				zap.String("message", fmt.Sprint(args...)))
			return goja.Undefined()
		}
	}

	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, logFn(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// EncodingUtility provides btoa and atob
type EncodingUtility struct{}

func (u *EncodingUtility) Name() string { return "encoding" }

func (u *EncodingUtility) AllowedSecurityLevels() []string {
	return []string{SecurityLevelStandard, SecurityLevelPermissive}
}

func (u *EncodingUtility) Register(vm *goja.Runtime) error {
	if err := vm.Set("btoa", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("btoa requires an argument"))
		}
		return vm.ToValue(base64.StdEncoding.EncodeToString([]byte(call.Argument(0).String())))
	}); err != nil {
		return err
	}

	return vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("atob requires an argument"))
		}
		decoded, err := base64.StdEncoding.DecodeString(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("atob error: %w", err)))
		}
		return vm.ToValue(string(decoded))
	})
}
