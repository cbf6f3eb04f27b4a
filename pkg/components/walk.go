package components

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/pathutil"
)

// Directive tells the walker what to do after a component has been visited.
type Directive int

const (
	// Continue descends into the component's children.
	Continue Directive = iota
	// SkipChildren moves on to the next sibling without descending.
	SkipChildren
)

// NoIndex is passed as the row index for components that are not inside a
// repeatable row.
const NoIndex = -1

// VisitFunc is called once per visited component.
//
// data is the whole document, row the object the component's value lives in,
// path the component's address in data, siblings the list the component was
// declared in and index the enclosing row index (NoIndex outside rows).
type VisitFunc func(component *Component, data, row map[string]interface{}, path string, siblings []*Component, index int) Directive

// VisitContextFunc is the suspending form of VisitFunc. A returned error stops
// the walk and is returned to the caller.
type VisitContextFunc func(ctx context.Context, component *Component, data, row map[string]interface{}, path string, siblings []*Component, index int) (Directive, error)

// EachComponentData walks components depth first in declaration order,
// pairing each one with its row and path in data. Components whose row does
// not exist are not visited and neither are their children.
func EachComponentData(components []*Component, data map[string]interface{}, fn VisitFunc) {
	w := walker{
		visit: func(_ context.Context, c *Component, data, row map[string]interface{}, path string, siblings []*Component, index int) (Directive, error) {
			return fn(c, data, row, path, siblings, index), nil
		},
	}
	_ = w.walk(context.Background(), components, data, data, "", NoIndex)
}

// EachComponentDataContext walks like EachComponentData but lets the visitor
// block and fail. The context is checked before every component.
func EachComponentDataContext(ctx context.Context, components []*Component, data map[string]interface{}, fn VisitContextFunc) error {
	w := walker{visit: fn}
	return w.walk(ctx, components, data, data, "", NoIndex)
}

type walker struct {
	visit VisitContextFunc
}

func (w walker) walk(ctx context.Context, list []*Component, data, row map[string]interface{}, prefix string, index int) error {
	if row == nil {
		return nil
	}
	for _, c := range list {
		if c == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		path := pathutil.Join(prefix, c.Key)
		directive, err := w.visit(ctx, c, data, row, path, list, index)
		if err != nil {
			return err
		}
		if directive == SkipChildren {
			continue
		}
		if err := w.walkChildren(ctx, c, data, row, prefix, path, index); err != nil {
			return err
		}
	}
	return nil
}

func (w walker) walkChildren(ctx context.Context, c *Component, data, row map[string]interface{}, prefix, path string, index int) error {
	children := c.Children()
	if len(children) == 0 {
		return nil
	}

	switch c.ModelType() {
	case ModelNestedObject:
		return w.walk(ctx, children, data, asMap(row[c.Key]), path, index)

	case ModelNestedArray:
		rows, ok := row[c.Key].([]interface{})
		if !ok {
			return nil
		}
		for i, r := range rows {
			if err := w.walk(ctx, children, data, asMap(r), pathutil.Index(path, i), i); err != nil {
				return err
			}
		}
		return nil

	case ModelDataObject:
		sub := asMap(row[c.Key])
		if sub == nil {
			return nil
		}
		return w.walk(ctx, children, data, asMap(sub["data"]), pathutil.Join(path, "data"), index)

	default:
		// Layout and value components do not open a new row.
		return w.walk(ctx, children, data, row, prefix, index)
	}
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// DataKeys returns the data keys declared by components, looking through
// layout components that do not own data themselves.
func DataKeys(list []*Component) []string {
	var keys []string
	for _, c := range list {
		if c == nil {
			continue
		}
		if c.ModelType() == ModelNone || c.Key == "" {
			keys = append(keys, DataKeys(c.Children())...)
			continue
		}
		keys = append(keys, c.Key)
	}
	return keys
}

// Find returns the first component in the tree whose key matches.
func Find(list []*Component, key string) *Component {
	for _, c := range list {
		if c == nil {
			continue
		}
		if c.Key == key {
			return c
		}
		if found := Find(c.Children(), key); found != nil {
			return found
		}
	}
	return nil
}
