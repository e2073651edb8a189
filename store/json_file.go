package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/stevemurr/zeno/document"
	"github.com/stevemurr/zeno/query"
)

// JsonFileStore keeps one table in a single JSON file on disk. Every
// operation loads the file and every mutation rewrites it.
//
// Layout:
//
//	data_dir/
//	  _default.json   # {"next": 3, "docs": [{"id": 0, "doc": {...}}, ...]}
type JsonFileStore struct {
	mu   sync.RWMutex
	path string
}

type jsonTable struct {
	Next Position     `json:"next"`
	Docs []jsonRecord `json:"docs"`
}

type jsonRecord struct {
	ID  Position `json:"id"`
	Doc any      `json:"doc"`
}

func NewJsonFileStore(dir, table string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("json", "mkdir", err)
	}
	return &JsonFileStore{path: filepath.Join(dir, table+".json")}, nil
}

// Path returns the file backing this table.
func (s *JsonFileStore) Path() string {
	return s.path
}

func (s *JsonFileStore) load() (*jsonTable, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &jsonTable{}, nil
		}
		return nil, storageErr("json", "read", err)
	}
	var t jsonTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, storageErr("json", "decode", err)
	}
	return &t, nil
}

func (s *JsonFileStore) save(t *jsonTable) error {
	if t.Docs == nil {
		t.Docs = []jsonRecord{}
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return storageErr("json", "encode", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return storageErr("json", "write", err)
	}
	return storageErr("json", "rename", os.Rename(tmp, s.path))
}

func (s *JsonFileStore) Write(doc any) (Position, error) {
	norm, err := document.Normalize(doc)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	if err != nil {
		return 0, err
	}
	pos := t.Next
	t.Docs = append(t.Docs, jsonRecord{ID: pos, Doc: norm})
	t.Next++
	if err := s.save(t); err != nil {
		return 0, err
	}
	return pos, nil
}

func (s *JsonFileStore) Read(descriptor any) ([]document.Document, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	result := []document.Document{}
	for _, r := range t.Docs {
		if q.Match(r.Doc) {
			result = append(result, r.Doc)
		}
	}
	return result, nil
}

func (s *JsonFileStore) Get(pos Position) (document.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.load()
	if err != nil {
		return nil, false, err
	}
	for _, r := range t.Docs {
		if r.ID == pos {
			return r.Doc, true, nil
		}
	}
	return nil, false, nil
}

func (s *JsonFileStore) Delete(descriptor any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := t.Docs[:0]
	for _, r := range t.Docs {
		if !q.Match(r.Doc) {
			kept = append(kept, r)
		}
	}
	n := len(t.Docs) - len(kept)
	if n == 0 {
		return 0, nil
	}
	t.Docs = kept
	return n, s.save(t)
}

func (s *JsonFileStore) Update(descriptor any, fields any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	f, err := normalizeFields(fields)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for i, r := range t.Docs {
		doc, ok := document.IsMap(r.Doc)
		if !ok || !q.Match(doc) {
			continue
		}
		t.Docs[i].Doc = applyFields(doc, f)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.save(t)
}

func (s *JsonFileStore) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(&jsonTable{})
}

func (s *JsonFileStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(t.Docs), nil
}

func (s *JsonFileStore) Close() error {
	return nil
}
