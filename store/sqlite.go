package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stevemurr/zeno/document"
	"github.com/stevemurr/zeno/query"
)

// SqliteStore stores a table inside a SQLite database. Several tables may
// share one database file.
//
// Tables:
//
//	documents(tbl, position, data)  PRIMARY KEY (tbl, position)
//	sequences(tbl, next)            PRIMARY KEY (tbl)
type SqliteStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	table string
}

func NewSqliteStore(dbPath, table string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, storageErr("sqlite", "mkdir", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, storageErr("sqlite", "open", err)
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS documents (
			tbl TEXT NOT NULL,
			position INTEGER NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (tbl, position)
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			tbl TEXT PRIMARY KEY,
			next INTEGER NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, storageErr("sqlite", "init", err)
		}
	}
	return &SqliteStore{db: db, table: table}, nil
}

func (s *SqliteStore) Close() error {
	return storageErr("sqlite", "close", s.db.Close())
}

type sqliteRow struct {
	pos Position
	doc document.Document
}

// scan loads every live document of the table in position order.
func (s *SqliteStore) scan(q sqlQuerier) ([]sqliteRow, error) {
	rows, err := q.Query("SELECT position, data FROM documents WHERE tbl = ? ORDER BY position", s.table)
	if err != nil {
		return nil, storageErr("sqlite", "query", err)
	}
	defer rows.Close()
	var result []sqliteRow
	for rows.Next() {
		var pos Position
		var raw string
		if err := rows.Scan(&pos, &raw); err != nil {
			return nil, storageErr("sqlite", "scan", err)
		}
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, storageErr("sqlite", "decode", err)
		}
		result = append(result, sqliteRow{pos, doc})
	}
	return result, storageErr("sqlite", "query", rows.Err())
}

type sqlQuerier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func (s *SqliteStore) Write(doc any) (Position, error) {
	norm, err := document.Normalize(doc)
	if err != nil {
		return 0, err
	}
	b, err := json.Marshal(norm)
	if err != nil {
		return 0, storageErr("sqlite", "encode", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, storageErr("sqlite", "begin", err)
	}
	defer tx.Rollback()

	var next Position
	err = tx.QueryRow("SELECT next FROM sequences WHERE tbl = ?", s.table).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, storageErr("sqlite", "sequence", err)
	}
	if _, err := tx.Exec("INSERT INTO documents (tbl, position, data) VALUES (?, ?, ?)", s.table, next, string(b)); err != nil {
		return 0, storageErr("sqlite", "insert", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO sequences (tbl, next) VALUES (?, ?)
		 ON CONFLICT(tbl) DO UPDATE SET next = excluded.next`,
		s.table, next+1,
	); err != nil {
		return 0, storageErr("sqlite", "sequence", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("sqlite", "commit", err)
	}
	return next, nil
}

func (s *SqliteStore) Read(descriptor any) ([]document.Document, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.scan(s.db)
	if err != nil {
		return nil, err
	}
	result := []document.Document{}
	for _, r := range rows {
		if q.Match(r.doc) {
			result = append(result, r.doc)
		}
	}
	return result, nil
}

func (s *SqliteStore) Get(pos Position) (document.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var raw string
	err := s.db.QueryRow("SELECT data FROM documents WHERE tbl = ? AND position = ?", s.table, pos).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("sqlite", "get", err)
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, storageErr("sqlite", "decode", err)
	}
	return doc, true, nil
}

func (s *SqliteStore) Delete(descriptor any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, storageErr("sqlite", "begin", err)
	}
	defer tx.Rollback()

	rows, err := s.scan(tx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if !q.Match(r.doc) {
			continue
		}
		if _, err := tx.Exec("DELETE FROM documents WHERE tbl = ? AND position = ?", s.table, r.pos); err != nil {
			return 0, storageErr("sqlite", "delete", err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("sqlite", "commit", err)
	}
	return n, nil
}

func (s *SqliteStore) Update(descriptor any, fields any) (int, error) {
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
	tx, err := s.db.Begin()
	if err != nil {
		return 0, storageErr("sqlite", "begin", err)
	}
	defer tx.Rollback()

	rows, err := s.scan(tx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		doc, ok := document.IsMap(r.doc)
		if !ok || !q.Match(doc) {
			continue
		}
		b, err := json.Marshal(applyFields(doc, f))
		if err != nil {
			return 0, storageErr("sqlite", "encode", err)
		}
		if _, err := tx.Exec("UPDATE documents SET data = ? WHERE tbl = ? AND position = ?", string(b), s.table, r.pos); err != nil {
			return 0, storageErr("sqlite", "update", err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("sqlite", "commit", err)
	}
	return n, nil
}

func (s *SqliteStore) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("sqlite", "begin", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM documents WHERE tbl = ?", s.table); err != nil {
		return storageErr("sqlite", "truncate", err)
	}
	if _, err := tx.Exec("DELETE FROM sequences WHERE tbl = ?", s.table); err != nil {
		return storageErr("sqlite", "truncate", err)
	}
	return storageErr("sqlite", "commit", tx.Commit())
}

func (s *SqliteStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE tbl = ?", s.table).Scan(&n); err != nil {
		return 0, storageErr("sqlite", "count", err)
	}
	return n, nil
}
