// Package pathutil reads and writes values inside nested data documents.
//
// Paths use dot-separated keys with bracketed row indices, the same strings the
// component walker produces:
//
//	name
//	address.street
//	children[0].name
//	grid[2].inner[0].value
//
// Documents are the shapes encoding/json produces: map[string]interface{} for
// objects and []interface{} for arrays. Writes mutate the document in place so
// that row references handed out by the walker observe the change.
package pathutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned when a path string cannot be parsed.
var ErrInvalidPath = errors.New("invalid path")

// Segment is one step of a parsed path. Exactly one of Key or Index is meaningful.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// String renders the segment the way it appears in a path.
func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Parse splits a path into segments.
func Parse(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}

	segments := make([]Segment, 0, strings.Count(path, ".")+1)
	i := 0
	expectKey := true
	for i < len(path) {
		switch path[i] {
		case '.':
			if expectKey {
				return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
			}
			expectKey = true
			i++
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated index in %q", ErrInvalidPath, path)
			}
			raw := path[i+1 : i+end]
			idx, err := strconv.Atoi(raw)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("%w: bad index %q in %q", ErrInvalidPath, raw, path)
			}
			if expectKey && len(segments) > 0 {
				return nil, fmt.Errorf("%w: index after separator in %q", ErrInvalidPath, path)
			}
			segments = append(segments, Segment{Index: idx, IsIndex: true})
			expectKey = false
			i += end + 1
		default:
			if !expectKey {
				return nil, fmt.Errorf("%w: missing separator in %q", ErrInvalidPath, path)
			}
			end := strings.IndexAny(path[i:], ".[")
			if end < 0 {
				end = len(path) - i
			}
			segments = append(segments, Segment{Key: path[i : i+end]})
			expectKey = false
			i += end
		}
	}
	if expectKey {
		return nil, fmt.Errorf("%w: trailing separator in %q", ErrInvalidPath, path)
	}
	return segments, nil
}

// Join appends a key to a path prefix.
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

// Index appends a row index to a path.
func Index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// Get returns the value at path. The second result is false when any segment
// along the way is missing or has the wrong shape.
func Get(doc interface{}, path string) (interface{}, bool) {
	segments, err := Parse(path)
	if err != nil {
		return nil, false
	}
	current := doc
	for _, seg := range segments {
		next, ok := step(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Value is Get without the presence flag.
func Value(doc interface{}, path string) interface{} {
	v, _ := Get(doc, path)
	return v
}

// Has reports whether a value (possibly nil) is stored at path.
func Has(doc interface{}, path string) bool {
	_, ok := Get(doc, path)
	return ok
}

func step(current interface{}, seg Segment) (interface{}, bool) {
	if seg.IsIndex {
		arr, ok := current.([]interface{})
		if !ok || seg.Index >= len(arr) {
			return nil, false
		}
		return arr[seg.Index], true
	}
	obj, ok := current.(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := obj[seg.Key]
	return v, ok
}

// Set writes value at path, creating intermediate maps and slices as needed.
// Because a grown slice has to be stored back into its parent, Set walks the
// path recursively instead of keeping a cursor.
func Set(doc map[string]interface{}, path string, value interface{}) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidPath)
	}
	segments, err := Parse(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if segments[0].IsIndex {
		return fmt.Errorf("%w: path %q starts with an index", ErrInvalidPath, path)
	}
	setIn(doc, segments, value)
	return nil
}

func setIn(container interface{}, segments []Segment, value interface{}) interface{} {
	seg := segments[0]
	last := len(segments) == 1

	if seg.IsIndex {
		arr, _ := container.([]interface{})
		for len(arr) <= seg.Index {
			arr = append(arr, nil)
		}
		if last {
			arr[seg.Index] = value
		} else {
			arr[seg.Index] = setIn(ensureContainer(arr[seg.Index], segments[1]), segments[1:], value)
		}
		return arr
	}

	obj, ok := container.(map[string]interface{})
	if !ok {
		obj = make(map[string]interface{})
	}
	if last {
		obj[seg.Key] = value
	} else {
		obj[seg.Key] = setIn(ensureContainer(obj[seg.Key], segments[1]), segments[1:], value)
	}
	return obj
}

func ensureContainer(existing interface{}, next Segment) interface{} {
	if next.IsIndex {
		if arr, ok := existing.([]interface{}); ok {
			return arr
		}
		return []interface{}{}
	}
	if obj, ok := existing.(map[string]interface{}); ok {
		return obj
	}
	return make(map[string]interface{})
}

// Unset removes the value at path. Object keys are deleted; array slots are set
// to nil so sibling row indices stay stable. Missing paths are ignored.
func Unset(doc map[string]interface{}, path string) {
	segments, err := Parse(path)
	if err != nil || len(segments) == 0 {
		return
	}
	var parent interface{} = doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := step(parent, seg)
		if !ok {
			return
		}
		parent = next
	}
	lastSeg := segments[len(segments)-1]
	switch p := parent.(type) {
	case map[string]interface{}:
		if !lastSeg.IsIndex {
			delete(p, lastSeg.Key)
		}
	case []interface{}:
		if lastSeg.IsIndex && lastSeg.Index < len(p) {
			p[lastSeg.Index] = nil
		}
	}
}

// Parent returns the path of the object that holds the last segment, or "" for
// top-level keys.
func Parent(path string) string {
	segments, err := Parse(path)
	if err != nil || len(segments) <= 1 {
		return ""
	}
	return Format(segments[:len(segments)-1])
}

// Format renders segments back into a path string.
func Format(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if !seg.IsIndex && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.String())
	}
	return b.String()
}
