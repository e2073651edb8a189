package store

import (
	"sync"

	"github.com/stevemurr/zeno/document"
	"github.com/stevemurr/zeno/query"
)

// MemoryStore keeps the document sequence in memory. Data is lost when the
// process exits. Deleted slots are tombstoned so positions stay stable.
type MemoryStore struct {
	mu    sync.RWMutex
	slots []memSlot
	live  int
}

type memSlot struct {
	doc     document.Document
	deleted bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Write(doc any) (Position, error) {
	norm, err := document.Normalize(doc)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := Position(len(m.slots))
	m.slots = append(m.slots, memSlot{doc: norm})
	m.live++
	return pos, nil
}

func (m *MemoryStore) Read(descriptor any) ([]document.Document, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []document.Document{}
	for _, s := range m.slots {
		if !s.deleted && q.Match(s.doc) {
			result = append(result, document.Clone(s.doc))
		}
	}
	return result, nil
}

func (m *MemoryStore) Get(pos Position) (document.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos < 0 || int(pos) >= len(m.slots) || m.slots[pos].deleted {
		return nil, false, nil
	}
	return document.Clone(m.slots[pos].doc), true, nil
}

func (m *MemoryStore) Delete(descriptor any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.slots {
		s := &m.slots[i]
		if !s.deleted && q.Match(s.doc) {
			s.deleted = true
			s.doc = nil
			n++
		}
	}
	m.live -= n
	return n, nil
}

func (m *MemoryStore) Update(descriptor any, fields any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	f, err := normalizeFields(fields)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.slots {
		s := &m.slots[i]
		if s.deleted || !q.Match(s.doc) {
			continue
		}
		doc, ok := document.IsMap(s.doc)
		if !ok {
			continue
		}
		s.doc = applyFields(doc, f)
		n++
	}
	return n, nil
}

func (m *MemoryStore) Truncate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = nil
	m.live = 0
	return nil
}

func (m *MemoryStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
