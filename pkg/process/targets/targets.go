// Package targets assembles the named processors into the two execution
// targets and offers runners for them.
package targets

import (
	"context"
	"fmt"
	"sort"

	"github.com/wehubfusion/Daedalus/pkg/process"
	"github.com/wehubfusion/Daedalus/pkg/process/calculation"
	"github.com/wehubfusion/Daedalus/pkg/process/conditions"
	"github.com/wehubfusion/Daedalus/pkg/process/defaultvalue"
	"github.com/wehubfusion/Daedalus/pkg/process/fetch"
	"github.com/wehubfusion/Daedalus/pkg/process/filter"
	"github.com/wehubfusion/Daedalus/pkg/process/logic"
	"github.com/wehubfusion/Daedalus/pkg/process/normalize"
	"github.com/wehubfusion/Daedalus/pkg/process/validation"
)

// Target names.
const (
	SubmissionTarget = "submission"
	EvaluatorTarget  = "evaluator"
)

// ProcessorMap holds every named processor.
var ProcessorMap = map[string]process.ProcessorInfo{
	filter.Name:             filter.ProcessorInfo,
	defaultvalue.Name:       defaultvalue.ProcessorInfo,
	defaultvalue.ServerName: defaultvalue.ServerProcessorInfo,
	defaultvalue.CustomName: defaultvalue.CustomProcessorInfo,
	calculation.Name:        calculation.ProcessorInfo,
	conditions.Name:         conditions.ProcessorInfo,
	conditions.CustomName:   conditions.CustomProcessorInfo,
	conditions.SimpleName:   conditions.SimpleProcessorInfo,
	normalize.Name:          normalize.ProcessorInfo,
	fetch.Name:              fetch.ProcessorInfo,
	logic.Name:              logic.ProcessorInfo,
	validation.Name:         validation.ProcessorInfo,
	validation.CustomName:   validation.CustomProcessorInfo,
	validation.ServerName:   validation.ServerProcessorInfo,
}

// Target lists. The order is part of the behavior: filtering before
// defaults, normalization before validation and visibility settled before
// full validation.
var (
	Submission = []string{
		filter.Name,
		defaultvalue.ServerName,
		normalize.Name,
		fetch.Name,
		conditions.SimpleName,
		validation.ServerName,
	}
	Evaluator = []string{
		defaultvalue.CustomName,
		calculation.Name,
		logic.Name,
		conditions.Name,
		validation.Name,
	}
)

// Targets maps target names to their processor lists.
var Targets = map[string][]string{
	SubmissionTarget: Submission,
	EvaluatorTarget:  Evaluator,
}

// NewRegistry returns a registry holding every processor of ProcessorMap,
// registered in name order.
func NewRegistry() *process.Registry {
	names := make([]string, 0, len(ProcessorMap))
	for name := range ProcessorMap {
		names = append(names, name)
	}
	sort.Strings(names)

	r := process.NewRegistry()
	for _, name := range names {
		r.MustRegister(ProcessorMap[name])
	}
	return r
}

// Processors resolves a target name to its processors.
func Processors(registry *process.Registry, target string) ([]process.ProcessorInfo, error) {
	names, ok := Targets[target]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target)
	}
	return registry.List(names...)
}

// ProcessSubmission runs the submission target. It may suspend on fetch and
// unique checks.
func ProcessSubmission(ctx context.Context, run *process.Run) (*process.Scope, error) {
	if run == nil {
		return nil, process.ErrNilRun
	}
	processors, err := Processors(NewRegistry(), SubmissionTarget)
	if err != nil {
		return nil, err
	}
	run.Processors = processors
	return process.Process(ctx, run)
}

// Evaluate runs the evaluator target without suspending.
func Evaluate(run *process.Run) (*process.Scope, error) {
	if run == nil {
		return nil, process.ErrNilRun
	}
	processors, err := Processors(NewRegistry(), EvaluatorTarget)
	if err != nil {
		return nil, err
	}
	run.Processors = processors
	return process.ProcessSync(run)
}

// EvaluateContext runs the evaluator target with the suspending driver.
func EvaluateContext(ctx context.Context, run *process.Run) (*process.Scope, error) {
	if run == nil {
		return nil, process.ErrNilRun
	}
	processors, err := Processors(NewRegistry(), EvaluatorTarget)
	if err != nil {
		return nil, err
	}
	run.Processors = processors
	return process.Process(ctx, run)
}
