// Package concurrency sizes the runner worker pool and bounds calls to the
// fetch and unique collaborators.
package concurrency

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// ConfigSource indicates where the configuration came from
type ConfigSource string

const (
	ConfigSourceEnvVar     ConfigSource = "environment_variable"
	ConfigSourceAutoDetect ConfigSource = "auto_detect"
)

// Config holds concurrency parameters.
type Config struct {
	// RunnerWorkers is the number of submissions processed at once.
	RunnerWorkers int
	// MaxInFlight bounds concurrent fetch and unique calls.
	MaxInFlight int
	// BreakerFailures opens the collaborator breaker after this many
	// consecutive failures.
	BreakerFailures int
	Source          ConfigSource
	IsKubernetes    bool
	EffectiveCPUs   int
}

// LoadConfig reads DAEDALUS_RUNNER_WORKERS, DAEDALUS_MAX_INFLIGHT and
// DAEDALUS_BREAKER_FAILURES, deriving the rest from the CPU count.
func LoadConfig() *Config {
	config := &Config{
		IsKubernetes:    os.Getenv("KUBERNETES_SERVICE_HOST") != "",
		EffectiveCPUs:   runtime.GOMAXPROCS(0),
		Source:          ConfigSourceAutoDetect,
		BreakerFailures: 5,
	}

	if n := getEnvInt("DAEDALUS_RUNNER_WORKERS"); n > 0 {
		config.RunnerWorkers = n
		config.Source = ConfigSourceEnvVar
	} else if config.IsKubernetes {
		config.RunnerWorkers = max(config.EffectiveCPUs, 4)
	} else {
		config.RunnerWorkers = max(config.EffectiveCPUs*2, 8)
	}

	if n := getEnvInt("DAEDALUS_MAX_INFLIGHT"); n > 0 {
		config.MaxInFlight = n
		config.Source = ConfigSourceEnvVar
	} else {
		config.MaxInFlight = config.RunnerWorkers * 4
	}

	if n := getEnvInt("DAEDALUS_BREAKER_FAILURES"); n > 0 {
		config.BreakerFailures = n
	}
	return config
}

func getEnvInt(key string) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return 0
}

// String returns a formatted string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{RunnerWorkers: %d, MaxInFlight: %d, BreakerFailures: %d, IsK8s: %t, CPUs: %d, Source: %s}",
		c.RunnerWorkers,
		c.MaxInFlight,
		c.BreakerFailures,
		c.IsKubernetes,
		c.EffectiveCPUs,
		c.Source,
	)
}
