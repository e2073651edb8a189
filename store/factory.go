package store

import (
	"fmt"
	"path/filepath"
)

// Backends lists the names accepted by New.
var Backends = []string{"memory", "json", "sqlite", "bolt"}

// New creates the Storage for one table based on the backend name.
//
// Supported backends:
//
//	"memory" - In-memory (default, ephemeral)
//	"json"   - JSON file at dataDir/<table>.json
//	"sqlite" - SQLite database at dataDir/zeno.db
//	"bolt"   - bbolt database at dataDir/zeno.bolt
func New(backend, dataDir, table string) (Storage, error) {
	switch backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "json":
		return NewJsonFileStore(dataDir, table)
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "zeno.db"), table)
	case "bolt":
		return NewBoltStore(filepath.Join(dataDir, "zeno.bolt"), table)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, json, sqlite, bolt)", backend)
	}
}
