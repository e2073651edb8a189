// Package query parses structural query descriptors and matches them
// against documents.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/stevemurr/zeno/document"
)

// ErrQuery matches every *Error via errors.Is.
var ErrQuery = errors.New("invalid query")

// Error reports a descriptor that is neither the match-all sentinel nor a
// field to value mapping.
type Error struct {
	Descriptor any
	Err        error
}

func errorf(desc any, err error) error {
	return &Error{Descriptor: desc, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid query %T: %v", e.Descriptor, e.Err)
	}
	return fmt.Sprintf("invalid query %T: expected a mapping of fields to values", e.Descriptor)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrQuery
}

// Query is a parsed descriptor. The zero value has no fields and matches
// nothing.
type Query struct {
	all    bool
	fields map[string]any
}

// All returns the match-all sentinel.
func All() Query {
	return Query{all: true}
}

// Fields builds an equality query from field paths to expected values.
// Values are compared by their JSON form, so typed Go values are accepted.
func Fields(fields map[string]any) Query {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if n, err := document.Normalize(v); err == nil {
			v = n
		}
		out[k] = v
	}
	return Query{fields: out}
}

// normalizeFields converts every expected value to its canonical tree so
// typed composites compare like the stored documents they describe.
func normalizeFields(desc any, fields map[string]any) (Query, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		n, err := document.Normalize(v)
		if err != nil {
			return Query{}, errorf(desc, err)
		}
		out[k] = n
	}
	return Query{fields: out}, nil
}

// Parse converts a descriptor into a Query. Accepted forms are Query,
// *Query, map[string]any, or any value that normalizes to a mapping.
func Parse(desc any) (Query, error) {
	switch v := desc.(type) {
	case Query:
		return v, nil
	case *Query:
		if v == nil {
			return Query{}, errorf(desc, nil)
		}
		return *v, nil
	case nil:
		return Query{}, errorf(desc, nil)
	case map[string]any:
		return normalizeFields(desc, v)
	}
	norm, err := document.Normalize(desc)
	if err != nil {
		return Query{}, errorf(desc, err)
	}
	m, ok := document.IsMap(norm)
	if !ok {
		return Query{}, errorf(desc, nil)
	}
	return Query{fields: m}, nil
}

// ParseJSON parses a textual descriptor.
func ParseJSON(data []byte) (Query, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Query{}, errorf(string(data), err)
	}
	return Parse(v)
}

// IsAll reports whether q is the match-all sentinel.
func (q Query) IsAll() bool {
	return q.all
}

// Len returns the number of field predicates.
func (q Query) Len() int {
	return len(q.fields)
}

// Match reports whether doc satisfies every field predicate of q. Documents
// that are not mappings never match, and neither does an empty query.
func (q Query) Match(doc document.Document) bool {
	if q.all {
		return true
	}
	if len(q.fields) == 0 {
		return false
	}
	if _, ok := document.IsMap(doc); !ok {
		return false
	}
	for key, want := range q.fields {
		got, ok := document.Lookup(doc, key)
		if !ok || !document.Equal(got, want) {
			return false
		}
	}
	return true
}

func (q Query) String() string {
	if q.all {
		return "{all}"
	}
	keys := make([]string, 0, len(q.fields))
	for k := range q.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "{" + strings.Join(keys, ",") + "}"
}
