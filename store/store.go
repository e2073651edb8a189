// Package store defines the storage capability and its backends.
package store

import (
	"github.com/stevemurr/zeno/document"
)

// Position identifies a document within one storage instance. Positions
// start at 0, grow strictly and are never reused until Truncate.
type Position int

// Storage is the interface that all backends must implement. It owns an
// ordered sequence of documents belonging to a single table.
//
// Descriptors are parsed with query.Parse; a malformed one fails with an
// error matching query.ErrQuery.
type Storage interface {
	// Write appends a document and returns its position.
	Write(doc any) (Position, error)

	// Read returns copies of the documents matching the descriptor, in
	// insertion order.
	Read(descriptor any) ([]document.Document, error)

	// Get returns a copy of the document at pos, or false if it was deleted
	// or never written.
	Get(pos Position) (document.Document, bool, error)

	// Delete removes every matching document and returns the count.
	// Positions of surviving documents do not change.
	Delete(descriptor any) (int, error)

	// Update sets the top-level keys in fields on every matching document
	// and returns the count.
	Update(descriptor any, fields any) (int, error)

	// Truncate removes all documents; the next Write returns position 0.
	Truncate() error

	// Len returns the number of live documents.
	Len() (int, error)

	// Close releases backend resources.
	Close() error
}
