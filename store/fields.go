package store

import (
	"fmt"

	"github.com/stevemurr/zeno/document"
)

// normalizeFields validates the replacement fields passed to Update.
func normalizeFields(fields any) (map[string]any, error) {
	norm, err := document.Normalize(fields)
	if err != nil {
		return nil, err
	}
	m, ok := document.IsMap(norm)
	if !ok {
		return nil, fmt.Errorf("%w: update fields must be a mapping, got %T", document.ErrInvalidDocument, fields)
	}
	return m, nil
}

// applyFields returns a copy of doc with the top-level keys of fields
// replaced. doc must be a mapping.
func applyFields(doc map[string]any, fields map[string]any) map[string]any {
	out := document.Clone(doc).(map[string]any)
	for k, v := range fields {
		out[k] = document.Clone(v)
	}
	return out
}
