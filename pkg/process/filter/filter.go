// Package filter removes values the form does not persist: stray keys the
// schema does not declare and values of non-persistent components.
package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

// Name is the registry name of the stage.
const Name = "filter"

// ProcessorInfo is the filter stage. PostProcess runs after every other stage
// of the target, so values written back by later stages are removed again.
var ProcessorInfo = process.ProcessorInfo{
	Name: Name,
	ShouldProcess: func(c *process.Context) bool {
		return c.Component != nil && c.Component.HasData()
	},
	Process:     Process,
	PostProcess: PostProcess,
}

// Process drops the value of a non-persistent component, and prunes
// undeclared keys from the rows a data container owns.
func Process(_ context.Context, c *process.Context) error {
	comp := c.Component
	if !comp.IsPersistent() {
		if c.HasValue() {
			c.UnsetValue()
			c.Logger().Debug("non-persistent value removed")
		}
		c.SkipChildren()
		return nil
	}

	children := comp.Children()
	if len(children) == 0 {
		return nil
	}
	switch comp.ModelType() {
	case components.ModelNestedObject:
		if row, ok := c.Value().(map[string]interface{}); ok {
			prune(c, row, children)
		}
	case components.ModelNestedArray:
		if rows, ok := c.Value().([]interface{}); ok {
			for _, r := range rows {
				if row, isMap := r.(map[string]interface{}); isMap {
					prune(c, row, children)
				}
			}
		}
	case components.ModelDataObject:
		if sub, ok := c.Value().(map[string]interface{}); ok {
			if row, isMap := sub["data"].(map[string]interface{}); isMap {
				prune(c, row, children)
			}
		}
	}
	return nil
}

// PostProcess removes the values of non-persistent components and prunes
// stray keys at the root of the document.
func PostProcess(_ context.Context, c *process.Context) error {
	components.EachComponentData(c.Components, c.Data, func(comp *components.Component, _, row map[string]interface{}, path string, _ []*components.Component, _ int) components.Directive {
		if !comp.HasData() || comp.IsPersistent() {
			return components.Continue
		}
		if _, ok := row[comp.Key]; ok {
			delete(row, comp.Key)
			c.Logger().Debug("non-persistent value removed", zap.String("path", path))
		}
		return components.SkipChildren
	})
	prune(c, c.Data, c.Components)
	return nil
}

func prune(c *process.Context, row map[string]interface{}, declared []*components.Component) {
	keys := make(map[string]struct{}, len(row))
	for _, k := range components.DataKeys(declared) {
		keys[k] = struct{}{}
	}
	for k := range row {
		if _, ok := keys[k]; ok {
			continue
		}
		delete(row, k)
		c.Logger().Debug("stray value removed", zap.String("key", k))
	}
}
