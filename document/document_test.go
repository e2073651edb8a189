package document_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/zeno/document"
)

func TestNormalize(t *testing.T) {
	type info struct {
		Phone int `json:"phone"`
	}
	doc, err := document.Normalize(map[string]any{"name": "mario", "age": 28, "info": info{Phone: 123}})
	require.NoError(t, err)

	m, ok := document.IsMap(doc)
	require.True(t, ok)
	assert.Equal(t, float64(28), m["age"])
	assert.Equal(t, map[string]any{"phone": float64(123)}, m["info"])

	_, err = document.Normalize(make(chan int))
	require.Error(t, err)
	assert.True(t, errors.Is(err, document.ErrInvalidDocument))
}

func TestCloneIsIndependent(t *testing.T) {
	orig := map[string]any{"tags": []any{"a", "b"}, "info": map[string]any{"phone": float64(1)}}
	c := document.Clone(orig).(map[string]any)

	c["tags"].([]any)[0] = "z"
	c["info"].(map[string]any)["phone"] = float64(2)

	assert.Equal(t, "a", orig["tags"].([]any)[0])
	assert.Equal(t, float64(1), orig["info"].(map[string]any)["phone"])
}

type namedInt int

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same string", "x", "x", true},
		{"different string", "x", "y", false},
		{"int vs float", 123, float64(123), true},
		{"number vs string", float64(1), "1", false},
		{"nil", nil, nil, true},
		{"nil vs false", nil, false, false},
		{"bool", true, true, true},
		{"list order matters", []any{1.0, 2.0}, []any{2.0, 1.0}, false},
		{"list equal", []any{1.0, "a"}, []any{1, "a"}, true},
		{"map key order irrelevant",
			map[string]any{"a": 1.0, "b": 2.0},
			map[string]any{"b": 2.0, "a": 1.0}, true},
		{"map extra key", map[string]any{"a": 1.0}, map[string]any{"a": 1.0, "b": 2.0}, false},
		{"nested", map[string]any{"phone": 123}, map[string]any{"phone": float64(123)}, true},
		{"nested mismatch", map[string]any{"phone": 124}, map[string]any{"phone": float64(123)}, false},
		{"typed map", map[string]int{"a": 1}, map[string]any{"a": float64(1)}, true},
		{"normalized vs typed slice", []any{"a", "b"}, []string{"a", "b"}, true},
		{"normalized vs typed slice order", []any{"a", "b"}, []string{"b", "a"}, false},
		{"normalized vs typed map", map[string]any{"phone": float64(123)}, map[string]int{"phone": 123}, true},
		{"normalized vs typed map value", map[string]any{"phone": float64(123)}, map[string]int{"phone": 124}, false},
		{"nested int in composite", map[string]any{"xs": []any{float64(1), float64(2)}}, map[string]any{"xs": []int{1, 2}}, true},
		{"normalized vs struct", map[string]any{"phone": float64(123)}, struct {
			Phone int `json:"phone"`
		}{123}, true},
		{"float vs named int", float64(7), namedInt(7), true},
		{"string vs typed number", "7", namedInt(7), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, document.Equal(tc.a, tc.b))
		})
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"name":    "mario",
		"info":    map[string]any{"phone": float64(123)},
		"a.b":     "literal",
		"a":       map[string]any{"b": "nested"},
		"numbers": []any{1.0},
	}

	v, ok := document.Lookup(doc, "name")
	require.True(t, ok)
	assert.Equal(t, "mario", v)

	v, ok = document.Lookup(doc, "info.phone")
	require.True(t, ok)
	assert.Equal(t, float64(123), v)

	v, ok = document.Lookup(doc, "a.b")
	require.True(t, ok)
	assert.Equal(t, "literal", v)

	_, ok = document.Lookup(doc, "info.email")
	assert.False(t, ok)

	_, ok = document.Lookup(doc, "numbers.0")
	assert.False(t, ok)

	_, ok = document.Lookup([]any{1.0}, "name")
	assert.False(t, ok)
}
