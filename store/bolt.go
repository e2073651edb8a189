package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/stevemurr/zeno/document"
	"github.com/stevemurr/zeno/query"
)

// BoltStore keeps a table in a bbolt bucket. Keys are big-endian positions,
// values are msgpack-encoded documents, and the bucket sequence holds the
// next position to assign.
type BoltStore struct {
	bdb    *bbolt.DB
	bucket []byte
}

func NewBoltStore(path, table string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr("bolt", "mkdir", err)
	}
	bdb, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, storageErr("bolt", "open", err)
	}
	s := &BoltStore{bdb: bdb, bucket: []byte(table)}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, storageErr("bolt", "init", err)
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	return storageErr("bolt", "close", s.bdb.Close())
}

func positionKey(pos Position) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(pos))
	return k[:]
}

func keyPosition(k []byte) Position {
	return Position(binary.BigEndian.Uint64(k))
}

func decodeBolt(v []byte) (document.Document, error) {
	var doc any
	if err := msgpack.Unmarshal(v, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

func encodeBolt(doc document.Document) ([]byte, error) {
	b, err := msgpack.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// each calls fn for every stored document in position order. The bucket
// must not be modified from fn.
func (s *BoltStore) each(tx *bbolt.Tx, fn func(pos Position, doc document.Document) error) error {
	return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
		doc, err := decodeBolt(v)
		if err != nil {
			return err
		}
		return fn(keyPosition(k), doc)
	})
}

func (s *BoltStore) Write(doc any) (Position, error) {
	norm, err := document.Normalize(doc)
	if err != nil {
		return 0, err
	}
	data, err := encodeBolt(norm)
	if err != nil {
		return 0, storageErr("bolt", "write", err)
	}
	var pos Position
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		pos = Position(b.Sequence())
		if err := b.SetSequence(uint64(pos) + 1); err != nil {
			return err
		}
		return b.Put(positionKey(pos), data)
	})
	if err != nil {
		return 0, storageErr("bolt", "write", err)
	}
	return pos, nil
}

func (s *BoltStore) Read(descriptor any) ([]document.Document, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return nil, err
	}
	result := []document.Document{}
	err = s.bdb.View(func(tx *bbolt.Tx) error {
		return s.each(tx, func(_ Position, doc document.Document) error {
			if q.Match(doc) {
				result = append(result, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, storageErr("bolt", "read", err)
	}
	return result, nil
}

func (s *BoltStore) Get(pos Position) (document.Document, bool, error) {
	var doc document.Document
	var found bool
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(s.bucket).Get(positionKey(pos))
		if v == nil {
			return nil
		}
		var err error
		doc, err = decodeBolt(v)
		found = err == nil
		return err
	})
	if err != nil {
		return nil, false, storageErr("bolt", "get", err)
	}
	return doc, found, nil
}

func (s *BoltStore) Delete(descriptor any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		var doomed []Position
		err := s.each(tx, func(pos Position, doc document.Document) error {
			if q.Match(doc) {
				doomed = append(doomed, pos)
			}
			return nil
		})
		if err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		for _, pos := range doomed {
			if err := b.Delete(positionKey(pos)); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	if err != nil {
		return 0, storageErr("bolt", "delete", err)
	}
	return n, nil
}

func (s *BoltStore) Update(descriptor any, fields any) (int, error) {
	q, err := query.Parse(descriptor)
	if err != nil {
		return 0, err
	}
	f, err := normalizeFields(fields)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		updated := map[Position][]byte{}
		err := s.each(tx, func(pos Position, doc document.Document) error {
			m, ok := document.IsMap(doc)
			if !ok || !q.Match(m) {
				return nil
			}
			data, err := encodeBolt(applyFields(m, f))
			if err != nil {
				return err
			}
			updated[pos] = data
			return nil
		})
		if err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		for pos, data := range updated {
			if err := b.Put(positionKey(pos), data); err != nil {
				return err
			}
		}
		n = len(updated)
		return nil
	})
	if err != nil {
		return 0, storageErr("bolt", "update", err)
	}
	return n, nil
}

// Truncate drops and recreates the bucket, which also resets its sequence.
func (s *BoltStore) Truncate() error {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
	return storageErr("bolt", "truncate", err)
}

func (s *BoltStore) Len() (int, error) {
	var n int
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("bolt", "len", err)
	}
	return n, nil
}
