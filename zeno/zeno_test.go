package zeno_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stevemurr/zeno/query"
	"github.com/stevemurr/zeno/store"
	"github.com/stevemurr/zeno/zeno"
)

func TestInsert(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	id, err := db.Insert(map[string]any{"name": "mario", "age": 28})
	require.NoError(t, err)
	assert.Equal(t, store.Position(0), id)
}

func TestTwoInserts(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	for want := 0; want < 2; want++ {
		id, err := db.Insert(map[string]any{"name": "mario", "age": 28})
		require.NoError(t, err)
		assert.Equal(t, store.Position(want), id)
	}
}

func TestSequentialIdentity(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	const n = 25
	for k := 0; k < n; k++ {
		id, err := db.Insert(map[string]any{"k": k})
		require.NoError(t, err)
		require.Equal(t, store.Position(k), id)
	}

	docs, err := db.All()
	require.NoError(t, err)
	require.Len(t, docs, n)
	for k, doc := range docs {
		assert.Equal(t, float64(k), doc.(map[string]any)["k"])
	}

	// All is unaffected by earlier queries.
	_, err = db.Find(map[string]any{"k": 3})
	require.NoError(t, err)
	again, err := db.All()
	require.NoError(t, err)
	assert.Equal(t, docs, again)
}

func TestFind(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	_, err := db.Insert(map[string]any{"name": "mario", "age": 28, "info": map[string]any{"phone": 123}})
	require.NoError(t, err)

	docs, err := db.Find(map[string]any{"name": "mario"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "mario", docs[0].(map[string]any)["name"])

	docs, err = db.Find(map[string]any{"name": "luigi"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = db.Find(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = db.Find(map[string]any{"name": "mario", "info": map[string]any{"phone": 123}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = db.Find(map[string]any{"info": map[string]any{"phone": 124}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFindPropagatesQueryError(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	_, err := db.Insert(map[string]any{"name": "mario"})
	require.NoError(t, err)

	docs, err := db.Find("mario")
	assert.Nil(t, docs)
	assert.True(t, errors.Is(err, query.ErrQuery))
}

func TestTruncateResetsIdentity(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	for i := 0; i < 3; i++ {
		_, err := db.Insert(map[string]any{"i": i})
		require.NoError(t, err)
	}
	require.NoError(t, db.Truncate())

	docs, err := db.All()
	require.NoError(t, err)
	assert.Empty(t, docs)

	id, err := db.Insert(map[string]any{"i": 0})
	require.NoError(t, err)
	assert.Equal(t, store.Position(0), id)
}

func TestDeletePreservesPositions(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	for _, name := range []string{"mario", "luigi", "peach"} {
		_, err := db.Insert(map[string]any{"name": name})
		require.NoError(t, err)
	}

	n, err := db.Delete(map[string]any{"name": "luigi"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, ok, err := db.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mario", doc.(map[string]any)["name"])

	_, ok, err = db.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)

	doc, ok, err = db.Get(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "peach", doc.(map[string]any)["name"])

	id, err := db.Insert(map[string]any{"name": "toad"})
	require.NoError(t, err)
	assert.Equal(t, store.Position(3), id)

	count, err := db.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpdate(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	_, err := db.Insert(map[string]any{"name": "mario", "age": 28, "team": "red"})
	require.NoError(t, err)
	_, err = db.Insert(map[string]any{"name": "luigi", "age": 26, "team": "green"})
	require.NoError(t, err)

	n, err := db.Update(map[string]any{"name": "mario"}, map[string]any{"age": 29, "hat": true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, _, err := db.Get(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "mario", "age": float64(29), "team": "red", "hat": true}, doc)

	doc, _, err = db.Get(1)
	require.NoError(t, err)
	assert.Equal(t, float64(26), doc.(map[string]any)["age"])

	_, err = db.Update(42, map[string]any{"age": 1})
	assert.True(t, errors.Is(err, query.ErrQuery))
}

func TestOpen(t *testing.T) {
	opts := zeno.Options{Backend: "json", DataDir: t.TempDir()}
	db, err := zeno.Open(opts)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, zeno.DefaultTable, db.Table())

	_, err = zeno.Open(zeno.Options{Backend: "redis"})
	assert.Error(t, err)
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	db := zeno.New(zeno.Options{Table: "people", Logger: zap.New(core)})

	_, err := db.Insert(map[string]any{"name": "mario"})
	require.NoError(t, err)

	entries := logs.FilterMessage("Inserted document").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "people", entries[0].ContextMap()["table"])

	_, err = db.Find(map[string]any{"name": "mario"})
	require.NoError(t, err)
	_, err = db.All()
	require.NoError(t, err)

	entries = logs.FilterMessage("Found documents").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "{name}", fields["query"])
	assert.Equal(t, false, fields["all"])
	assert.Equal(t, int64(1), fields["fields"])
	assert.Equal(t, int64(1), fields["count"])
	assert.Equal(t, "{all}", entries[1].ContextMap()["query"])
	assert.Equal(t, true, entries[1].ContextMap()["all"])
}

func TestNewIgnoresBackend(t *testing.T) {
	dir := t.TempDir()
	db := zeno.New(zeno.Options{Table: "people", Backend: "bolt", DataDir: dir})
	defer db.Close()

	id, err := db.Insert(map[string]any{"name": "mario"})
	require.NoError(t, err)
	assert.Equal(t, store.Position(0), id)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFindTypedValues(t *testing.T) {
	db := zeno.New(zeno.DefaultOptions())
	_, err := db.Insert(map[string]any{"name": "mario", "tags": []string{"red", "cap"}, "info": map[string]int{"phone": 123}})
	require.NoError(t, err)
	_, err = db.Insert(map[string]any{"name": "luigi", "tags": []string{"green"}})
	require.NoError(t, err)

	docs, err := db.Find(map[string]any{"tags": []string{"red", "cap"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "mario", docs[0].(map[string]any)["name"])

	n, err := db.Delete(map[string]any{"info": map[string]int{"phone": 123}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := db.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}
