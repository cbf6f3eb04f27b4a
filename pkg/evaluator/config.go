package evaluator

import (
	"fmt"
	"time"
)

// Security levels for JavaScript expressions.
const (
	SecurityLevelStrict     = "strict"
	SecurityLevelStandard   = "standard"
	SecurityLevelPermissive = "permissive"
)

// Policy decides what happens when an expression cannot be evaluated.
type Policy int

const (
	// PolicyLenient turns malformed or throwing expressions into a nil result
	// and logs a warning. A nil result is indistinguishable from an expression
	// that deliberately produced nothing.
	PolicyLenient Policy = iota
	// PolicyStrict returns ErrMalformedRule instead.
	PolicyStrict
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "lenient"
}

// ParsePolicy maps "strict" and "lenient" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "lenient":
		return PolicyLenient, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return PolicyLenient, fmt.Errorf("unknown rule policy %q", s)
	}
}

// Config configures an Evaluator.
type Config struct {
	// Policy for malformed expressions.
	Policy Policy

	// Timeout bounds a single JavaScript expression.
	Timeout time.Duration

	// SecurityLevel defines sandbox restrictions (strict, standard, permissive).
	SecurityLevel string

	// EnabledUtilities lists helper modules exposed to scripts (console, encoding).
	EnabledUtilities []string

	// Pool sizes the VM pool.
	Pool PoolConfig
}

// DefaultUtilitiesByLevel defines default utilities for each security level.
var DefaultUtilitiesByLevel = map[string][]string{
	SecurityLevelStrict:     {},
	SecurityLevelStandard:   {"console", "encoding"},
	SecurityLevelPermissive: {"console", "encoding"},
}

// DefaultConfig returns the configuration used by Default.
func DefaultConfig() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Second
	}
	if c.SecurityLevel == "" {
		c.SecurityLevel = SecurityLevelStandard
	}
	if c.EnabledUtilities == nil {
		c.EnabledUtilities = DefaultUtilitiesByLevel[c.SecurityLevel]
	}
	if c.Pool.MaxSize == 0 {
		c.Pool = DefaultPoolConfig()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.SecurityLevel != SecurityLevelStrict &&
		c.SecurityLevel != SecurityLevelStandard &&
		c.SecurityLevel != SecurityLevelPermissive {
		return fmt.Errorf("invalid security level: %s", c.SecurityLevel)
	}
	if c.Policy != PolicyLenient && c.Policy != PolicyStrict {
		return fmt.Errorf("invalid policy: %d", c.Policy)
	}
	return nil
}
