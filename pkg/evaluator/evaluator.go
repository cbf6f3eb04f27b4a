// Package evaluator evaluates the rule expressions found in form definitions.
//
// Object expressions are JSONLogic rules applied to the evaluation context.
// String expressions are JavaScript snippets run in a pooled, sandboxed goja
// VM where every context key is a variable and the output key is pre-declared
// with its context value; the final value of the output variable is the
// result.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Evaluator evaluates expressions. It is safe for concurrent use.
type Evaluator struct {
	config Config
	logger *zap.Logger
	pool   *VMPool
}

// New creates an Evaluator.
func New(config Config, logger *zap.Logger) (*Evaluator, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := NewVMPool(&config, config.Pool, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM pool: %w", err)
	}

	return &Evaluator{config: config, logger: logger, pool: pool}, nil
}

var (
	defaultOnce      sync.Once
	defaultEvaluator *Evaluator
)

// Default returns a shared lenient evaluator with a no-op logger.
func Default() *Evaluator {
	defaultOnce.Do(func() {
		e, err := New(DefaultConfig(), nil)
		if err != nil {
			panic(fmt.Sprintf("evaluator: default configuration rejected: %v", err))
		}
		defaultEvaluator = e
	})
	return defaultEvaluator
}

// Policy returns the evaluator's malformed-rule policy.
func (e *Evaluator) Policy() Policy {
	return e.config.Policy
}

// Close releases the VM pool.
func (e *Evaluator) Close() error {
	return e.pool.Close()
}

// Stats returns VM pool statistics.
func (e *Evaluator) Stats() PoolStats {
	return e.pool.Stats()
}

// Evaluate evaluates expr against evalCtx and returns the result.
//
// A nil or blank expression yields nil. Values that are neither strings nor
// objects are literals and are returned unchanged. evalCtx is copied before
// evaluation, so expressions cannot modify the caller's data. Numbers in the
// result are float64, matching JSON-decoded documents.
func (e *Evaluator) Evaluate(ctx context.Context, expr interface{}, evalCtx map[string]interface{}, outputKey string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result interface{}
		err    error
	)
	switch x := expr.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		result, err = e.runScript(ctx, x, evalCtx, outputKey)
	case map[string]interface{}:
		if len(x) == 0 {
			return nil, nil
		}
		result, err = e.applyLogic(x, evalCtx)
	default:
		return expr, nil
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, e.fail(expr, outputKey, err)
	}
	return normalizeResult(result), nil
}

func (e *Evaluator) fail(expr interface{}, outputKey string, err error) error {
	if e.config.Policy == PolicyStrict {
		return fmt.Errorf("%w: %w", ErrMalformedRule, err)
	}
	e.logger.Warn("rule evaluation failed, treating as no result",
		zap.String("output", outputKey),
		zap.String("expression", describe(expr)),
		zap.Error(err))
	return nil
}

func (e *Evaluator) applyLogic(rule map[string]interface{}, evalCtx map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ScriptError{Type: ErrorTypeLogic, Message: fmt.Sprint(r)}
		}
	}()

	result, err = jsonlogic.ApplyInterface(rule, DeepCopy(evalCtx))
	if err != nil {
		return nil, &ScriptError{Type: ErrorTypeLogic, Message: err.Error()}
	}
	return result, nil
}

func (e *Evaluator) runScript(ctx context.Context, code string, evalCtx map[string]interface{}, outputKey string) (interface{}, error) {
	if outputKey == "" {
		outputKey = "value"
	}
	if !IsIdentifier(outputKey) {
		return nil, &ScriptError{Type: ErrorTypeInternal, Message: fmt.Sprintf("output key %q is not an identifier", outputKey)}
	}

	pooled, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire VM: %w", err)
	}
	defer func() {
		if releaseErr := e.pool.Release(pooled); releaseErr != nil {
			e.logger.Debug("failed to release VM", zap.Error(releaseErr))
		}
	}()

	done := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	defer func() {
		close(done)
		watcher.Wait()
	}()
	go func() {
		defer watcher.Done()
		timer := time.NewTimer(e.config.Timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		case <-done:
			return
		}
		pooled.mu.RLock()
		if pooled.vm != nil {
			pooled.vm.Interrupt("execution timeout")
		}
		pooled.mu.RUnlock()
	}()

	vm := pooled.vm
	fnValue, err := vm.RunString(wrapScript(code, evalCtx, outputKey))
	if err != nil {
		return nil, fromGojaError(err)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, &ScriptError{Type: ErrorTypeInternal, Message: "expression wrapper is not a function"}
	}

	scope := DeepCopy(evalCtx)
	if scope == nil {
		scope = map[string]interface{}{}
	}
	value, err := fn(goja.Undefined(), vm.ToValue(scope))
	if err != nil {
		return nil, fromGojaError(err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// wrapScript turns code into a function of the context object. Context keys
// that are valid identifiers become local variables.
func wrapScript(code string, evalCtx map[string]interface{}, outputKey string) string {
	keys := make([]string, 0, len(evalCtx))
	for k := range evalCtx {
		if k != outputKey && IsIdentifier(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("(function(__ctx) {\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "var %s = __ctx[%q];\n", k, k)
	}
	fmt.Fprintf(&b, "var %s = __ctx[%q];\n", outputKey, outputKey)
	b.WriteString(code)
	fmt.Fprintf(&b, "\n;return %s;\n})", outputKey)
	return b.String()
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var reservedWords = map[string]struct{}{
	"break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {}, "debugger": {},
	"default": {}, "delete": {}, "do": {}, "else": {}, "enum": {}, "export": {}, "extends": {},
	"false": {}, "finally": {}, "for": {}, "function": {}, "if": {}, "import": {}, "in": {},
	"instanceof": {}, "new": {}, "null": {}, "return": {}, "super": {}, "switch": {}, "this": {},
	"throw": {}, "true": {}, "try": {}, "typeof": {}, "var": {}, "void": {}, "while": {}, "with": {},
	"yield": {}, "let": {}, "static": {}, "await": {}, "implements": {}, "interface": {},
	"package": {}, "private": {}, "protected": {}, "public": {}, "arguments": {}, "eval": {},
}

// IsIdentifier reports whether name can be declared as a JavaScript variable.
func IsIdentifier(name string) bool {
	if !identifierPattern.MatchString(name) {
		return false
	}
	_, reserved := reservedWords[name]
	return !reserved
}

// DeepCopy copies nested maps and slices. Other values are shared.
func DeepCopy(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep copies maps and slices inside v.
func CopyValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return DeepCopy(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = CopyValue(item)
		}
		return out
	default:
		return v
	}
}

// normalizeResult converts integer results to float64 so they compare equal
// to JSON-decoded numbers.
func normalizeResult(v interface{}) interface{} {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = normalizeResult(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = normalizeResult(item)
		}
		return out
	default:
		return v
	}
}

// Truthy applies JavaScript truthiness to a result.
func Truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func describe(expr interface{}) string {
	s := fmt.Sprint(expr)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
