package monarch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/adapter"
	"github.com/cuemby/monarch/internal/config"
	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

func openTestDB(t *testing.T, wal bool) *Database {
	t.Helper()
	opts := Options{Config: config.Defaults(), Log: zerolog.Nop(), Version: "test"}
	if wal {
		opts.WALDir = t.TempDir()
	}
	db, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddDropListCollections(t *testing.T) {
	db := openTestDB(t, false)
	_, err := db.AddCollection("users")
	require.NoError(t, err)
	_, err = db.AddCollection("users")
	require.Error(t, err)

	assert.Equal(t, []string{"users"}, db.ListCollections())

	require.NoError(t, db.DropCollection("users"))
	assert.Empty(t, db.ListCollections())
	assert.Error(t, db.DropCollection("users"))
}

func TestGetStatsAndHealthCheck(t *testing.T) {
	db := openTestDB(t, false)
	c, err := db.AddCollection("users")
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"_id": "a", "name": "alice"})
	require.NoError(t, err)

	st := db.GetStats()
	require.Contains(t, st.Collections, "users")
	assert.Equal(t, 1, st.Collections["users"].Records)

	health := db.HealthCheck()
	assert.Equal(t, "healthy", health.Status)
}

func TestSaveLoadRoundTripsCollectionsAndContainers(t *testing.T) {
	db := openTestDB(t, false)
	c, err := db.AddCollection("users")
	require.NoError(t, err)
	_, err = c.CreateIndex("by_email", []string{"email"}, index.Options{Unique: true})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"_id": "a", "email": "a@example.com"})
	require.NoError(t, err)

	_, err = db.Containers().RPush("mylist", "x", "y")
	require.NoError(t, err)

	ad, err := adapter.NewFileAdapter(filepath.Join(t.TempDir(), "state.blob"))
	require.NoError(t, err)
	require.NoError(t, db.Save(context.Background(), ad))

	restored := openTestDB(t, false)
	require.NoError(t, restored.Load(context.Background(), ad))

	rc, ok := restored.Collection("users")
	require.True(t, ok)
	assert.Equal(t, 1, rc.Count(query.Query{}))
	require.Len(t, rc.Indexes(), 1)
	assert.Equal(t, "by_email", rc.Indexes()[0].Name)

	list, err := restored.Containers().LRange("mylist", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, list)
}

func TestWALRecoveryAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Options{Config: config.Defaults(), Log: zerolog.Nop(), WALDir: dir})
	require.NoError(t, err)
	c, err := db.AddCollection("users")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := c.Insert(record.Record{"_id": string(rune('a' + i))})
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	db2, err := Open(Options{Config: config.Defaults(), Log: zerolog.Nop(), WALDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	rc, ok := db2.Collection("users")
	require.True(t, ok)
	assert.Equal(t, 5, rc.Count(query.Query{}))
}
