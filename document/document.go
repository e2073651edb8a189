// Package document defines the semi-structured values stored by zeno and
// the comparison helpers used to match them.
package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrInvalidDocument is returned when a value cannot be represented as a
// JSON-like document.
var ErrInvalidDocument = errors.New("invalid document")

// Document is a normalized JSON tree. Nodes are nil, bool, float64, string,
// []any or map[string]any.
type Document = any

// Normalize converts any JSON-encodable value into the canonical tree form
// by round-tripping it through JSON.
func Normalize(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return out, nil
}

// Clone returns a deep copy of a normalized document.
func Clone(doc Document) Document {
	switch v := doc.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = Clone(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = Clone(e)
		}
		return s
	default:
		return v
	}
}

// IsMap reports whether doc is a mapping and returns it.
func IsMap(doc Document) (map[string]any, bool) {
	m, ok := doc.(map[string]any)
	return m, ok
}

// Equal reports whether a and b hold the same value. Mapping key order is
// irrelevant; numbers compare by numeric value regardless of Go type, and
// typed composites such as []string or structs compare by their JSON form.
func Equal(a, b Document) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	var ok bool
	if a, ok = canonical(a); !ok {
		return false
	}
	if b, ok = canonical(b); !ok {
		return false
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	case float64:
		// A typed value that normalized to a number, e.g. a named int.
		fb, ok := toFloat(b)
		return ok && av == fb
	}
	return false
}

// canonical returns v unchanged when it is already a tree node, otherwise
// its normalized form. Children of []any and map[string]any are handled by
// the recursion in Equal.
func canonical(v any) (any, bool) {
	switch v.(type) {
	case nil, bool, string, []any, map[string]any:
		return v, true
	}
	n, err := Normalize(v)
	if err != nil {
		return nil, false
	}
	return n, true
}

// Lookup resolves key against doc. The literal key wins; otherwise a dotted
// key such as "info.phone" walks nested mappings.
func Lookup(doc Document, key string) (any, bool) {
	m, ok := IsMap(doc)
	if !ok {
		return nil, false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	var cur any = m
	for _, part := range strings.Split(key, ".") {
		cm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = cm[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
