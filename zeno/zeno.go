// Package zeno is the user-facing entry point of the document store. A Zeno
// binds a table name to one Storage instance and routes operations to it.
//
// A Zeno is meant to have a single owner. Callers that share one across
// goroutines must serialize access themselves.
package zeno

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stevemurr/zeno/document"
	"github.com/stevemurr/zeno/query"
	"github.com/stevemurr/zeno/store"
)

// DefaultTable is the table used when Options.Table is empty.
const DefaultTable = "_default"

// Options configures a Zeno.
type Options struct {
	// Table names the logical collection. It selects the file, bucket or
	// row set used by durable backends.
	Table string
	// Backend is one of store.Backends. Empty means "memory".
	Backend string
	// DataDir holds the files of durable backends.
	DataDir string
	// Logger receives debug logs of every operation. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions returns the "_default" table on the memory backend.
func DefaultOptions() Options {
	return Options{
		Table:   DefaultTable,
		Backend: "memory",
	}
}

// Zeno is a table-scoped facade over one Storage.
type Zeno struct {
	options Options
	storage store.Storage
	log     *zap.SugaredLogger
}

// New returns a Zeno backed by a fresh in-memory storage. Backend and
// DataDir are ignored and reset; use Open to select a durable backend.
func New(opts Options) *Zeno {
	opts.Backend = "memory"
	opts.DataDir = ""
	return NewWithStorage(opts, store.NewMemoryStore())
}

// Open builds the storage named by opts.Backend.
func Open(opts Options) (*Zeno, error) {
	opts = withDefaults(opts)
	s, err := store.New(opts.Backend, opts.DataDir, opts.Table)
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", opts.Table, err)
	}
	return NewWithStorage(opts, s), nil
}

// NewWithStorage binds an existing storage. The Zeno takes ownership of s.
func NewWithStorage(opts Options, s store.Storage) *Zeno {
	opts = withDefaults(opts)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zeno{
		options: opts,
		storage: s,
		log:     logger.Sugar().With("table", opts.Table),
	}
}

func withDefaults(opts Options) Options {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if opts.Backend == "" {
		opts.Backend = "memory"
	}
	return opts
}

// Table returns the table name this Zeno is bound to.
func (z *Zeno) Table() string {
	return z.options.Table
}

// Insert stores doc and returns its permanent position.
func (z *Zeno) Insert(doc any) (store.Position, error) {
	pos, err := z.storage.Write(doc)
	if err != nil {
		return 0, err
	}
	z.log.Debugw("Inserted document", "position", pos)
	return pos, nil
}

// Find returns the documents matching descriptor in insertion order.
func (z *Zeno) Find(descriptor any) ([]document.Document, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return nil, err
	}
	docs, err := z.storage.Read(q)
	if err != nil {
		return nil, err
	}
	z.log.Debugw("Found documents", "query", q.String(), "all", q.IsAll(), "fields", q.Len(), "count", len(docs))
	return docs, nil
}

// All returns every stored document.
func (z *Zeno) All() ([]document.Document, error) {
	return z.Find(query.All())
}

// Get returns the document at pos.
func (z *Zeno) Get(pos store.Position) (document.Document, bool, error) {
	return z.storage.Get(pos)
}

// Delete removes the matching documents and returns how many were removed.
func (z *Zeno) Delete(descriptor any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	n, err := z.storage.Delete(q)
	if err != nil {
		return 0, err
	}
	z.log.Debugw("Deleted documents", "query", q.String(), "count", n)
	return n, nil
}

// Update replaces the top-level keys in fields on every matching document.
func (z *Zeno) Update(descriptor any, fields any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	n, err := z.storage.Update(q, fields)
	if err != nil {
		return 0, err
	}
	z.log.Debugw("Updated documents", "query", q.String(), "count", n)
	return n, nil
}

// Truncate removes every document; positions restart at 0.
func (z *Zeno) Truncate() error {
	if err := z.storage.Truncate(); err != nil {
		return err
	}
	z.log.Debugw("Truncated table")
	return nil
}

// Len returns the number of live documents.
func (z *Zeno) Len() (int, error) {
	return z.storage.Len()
}

// Close releases the underlying storage.
func (z *Zeno) Close() error {
	return z.storage.Close()
}
