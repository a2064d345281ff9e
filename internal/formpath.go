package internal

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/lychee-technology/apischema"
)

// Field names of the flat form. A tree node at path P submits P.name, P.type
// and so on; its children live at P.children[i] and an array's element
// schema at P.arrayElem.
const (
	FieldName        = "name"
	FieldType        = "type"
	FieldDescription = "description"
	FieldExample     = "example"
	FieldMock        = "mock"
	FieldIsRequired  = "isRequired"
	FieldChildren    = "children"
	FieldArrayElem   = "arrayElem"

	FieldPathValue   = "path"
	FieldMethod      = "method"
	FieldBodyType    = "bodyType"
	FieldBodyRaw     = "bodyRaw"
	FieldPathParams  = "pathParams"
	FieldQueryParams = "queryParams"
	FieldHeaders     = "headers"
	FieldBodyForm    = "bodyForm"
)

// ParamGroups lists the flat parameter tables in form order.
var ParamGroups = []string{FieldQueryParams, FieldHeaders, FieldBodyForm}

// PathSegment is either a key or a list index.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

// FieldPath addresses one value of the flat form, e.g. bodyJson.children[2].name.
type FieldPath []PathSegment

// NodePath returns the path of a tree root bound to prefix.
func NodePath(prefix string) FieldPath {
	return FieldPath{{Key: prefix}}
}

// ParamPath returns the path of row i of a parameter table.
func ParamPath(group string, i int) FieldPath {
	return FieldPath{{Key: group}, {Index: i, IsIndex: true}}
}

func (p FieldPath) with(seg ...PathSegment) FieldPath {
	out := make(FieldPath, 0, len(p)+len(seg))
	out = append(out, p...)
	return append(out, seg...)
}

// Key appends a key segment.
func (p FieldPath) Key(key string) FieldPath {
	return p.with(PathSegment{Key: key})
}

// Index appends an index segment.
func (p FieldPath) Index(i int) FieldPath {
	return p.with(PathSegment{Index: i, IsIndex: true})
}

// Child returns the path of the i-th child of the node at p.
func (p FieldPath) Child(i int) FieldPath {
	return p.with(PathSegment{Key: FieldChildren}, PathSegment{Index: i, IsIndex: true})
}

// ArrayElem returns the path of the element schema of the array node at p.
func (p FieldPath) ArrayElem() FieldPath {
	return p.Key(FieldArrayElem)
}

// Attr returns the path of a leaf attribute of the node at p.
func (p FieldPath) Attr(attr string) FieldPath {
	return p.Key(attr)
}

// Depth counts the tree levels below the root segment: one per child or array element hop.
func (p FieldPath) Depth() int {
	depth := 0
	for _, seg := range p {
		if seg.IsIndex || seg.Key == FieldArrayElem {
			depth++
		}
	}
	return depth
}

func (p FieldPath) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Key)
	}
	return b.String()
}

// ParseFieldPath parses the dotted/bracketed form of a path.
func ParseFieldPath(s string) (FieldPath, error) {
	if s == "" {
		return nil, errors.New("empty field path")
	}
	var path FieldPath
	for _, part := range strings.Split(s, ".") {
		key, rest, _ := strings.Cut(part, "[")
		if key == "" {
			return nil, fmt.Errorf("field path %q has an empty segment", s)
		}
		if strings.ContainsAny(key, "]") {
			return nil, fmt.Errorf("field path %q has an unbalanced bracket", s)
		}
		path = append(path, PathSegment{Key: key})

		for rest != "" {
			idx, after, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, fmt.Errorf("field path %q has an unbalanced bracket", s)
			}
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 || strconv.Itoa(n) != idx {
				return nil, fmt.Errorf("field path %q has an invalid index %q", s, idx)
			}
			path = append(path, PathSegment{Index: n, IsIndex: true})
			if after == "" {
				break
			}
			if after[0] != '[' {
				return nil, fmt.Errorf("field path %q has trailing characters after an index", s)
			}
			rest = after[1:]
		}
	}
	return path, nil
}

// sparseList collects indexed rows before they are compacted into a slice.
type sparseList map[int]any

var errShapeConflict = errors.New("conflicts with another field of the form")

// ExpandLimits bounds the shape ExpandValues accepts. Zero values are not enforced.
type ExpandLimits struct {
	MaxDepth  int
	MaxFields int
}

// ExpandValues rebuilds the nested shape of a flat form from its field paths.
// Objects become map[string]any, indexed rows become []any ordered by index
// with gaps removed, and leaves keep the first submitted value. Malformed or
// conflicting paths are reported per field, as are paths nested deeper than
// limits.MaxDepth. Nothing is built for a rejected path.
func ExpandValues(values url.Values, limits ExpandLimits) (map[string]any, error) {
	if limits.MaxFields > 0 && len(values) > limits.MaxFields {
		return nil, apischema.ValidationReport{
			"form": fmt.Sprintf("has %d fields, at most %d are allowed", len(values), limits.MaxFields),
		}
	}

	root := make(map[string]any)
	report := apischema.ValidationReport{}

	for _, key := range slices.Sorted(maps.Keys(values)) {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		path, err := ParseFieldPath(key)
		if err != nil {
			report.Add(key, err.Error())
			continue
		}
		if limits.MaxDepth > 0 && path.Depth() > limits.MaxDepth {
			report.Add(key, fmt.Sprintf("nesting is deeper than %d levels", limits.MaxDepth))
			continue
		}
		if err := setValueAtPath(root, path, vals[0]); err != nil {
			report.Add(key, err.Error())
		}
	}

	if report.HasErrors() {
		return nil, report
	}
	return compactValue(root).(map[string]any), nil
}

func newContainer(seg PathSegment) any {
	if seg.IsIndex {
		return sparseList{}
	}
	return map[string]any{}
}

func setValueAtPath(root map[string]any, path FieldPath, value string) error {
	var current any = root
	for i, seg := range path {
		last := i == len(path)-1

		var existing any
		var found bool
		switch c := current.(type) {
		case map[string]any:
			if seg.IsIndex {
				return errShapeConflict
			}
			existing, found = c[seg.Key]
			if !found {
				if last {
					existing = value
				} else {
					existing = newContainer(path[i+1])
				}
				c[seg.Key] = existing
			}
		case sparseList:
			if !seg.IsIndex {
				return errShapeConflict
			}
			existing, found = c[seg.Index]
			if !found {
				if last {
					existing = value
				} else {
					existing = newContainer(path[i+1])
				}
				c[seg.Index] = existing
			}
		default:
			return errShapeConflict
		}

		if last {
			if found {
				return errShapeConflict
			}
			return nil
		}
		current = existing
	}
	return nil
}

func compactValue(v any) any {
	switch c := v.(type) {
	case map[string]any:
		for k, child := range c {
			c[k] = compactValue(child)
		}
		return c
	case sparseList:
		out := make([]any, 0, len(c))
		for _, idx := range slices.Sorted(maps.Keys(c)) {
			out = append(out, compactValue(c[idx]))
		}
		return out
	}
	return v
}
