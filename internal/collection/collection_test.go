package collection

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/changestream"
	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/planner"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

func TestInsertAllocatesIDAndFindsRecord(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	id, err := c.Insert(record.Record{"name": "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got := c.FindOne(query.Query{"_id": id})
	require.NotNil(t, got)
	assert.Equal(t, "alice", got["name"])
}

func TestInsertDuplicateIDIsValidationError(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	_, err := c.Insert(record.Record{"_id": "fixed", "name": "a"})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"_id": "fixed", "name": "b"})
	require.Error(t, err)
	assert.True(t, monerr.Is(err, monerr.KindValidation))
}

func TestUniqueIndexRejectsDuplicateOnInsert(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	_, err := c.CreateIndex("by_email", []string{"email"}, index.Options{Unique: true})
	require.NoError(t, err)

	_, err = c.Insert(record.Record{"email": "a@x.com"})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"email": "a@x.com"})
	require.Error(t, err)
	assert.True(t, monerr.Is(err, monerr.KindConflict))
	assert.Equal(t, 1, c.Len())
}

func TestUpdateReplacesRecordPreservingID(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	id, _ := c.Insert(record.Record{"name": "alice", "age": 30})

	matched, modified, err := c.Update(query.Query{"_id": id}, record.Record{"name": "alicia"})
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, modified)

	got := c.FindOne(query.Query{"_id": id})
	assert.Equal(t, "alicia", got["name"])
	assert.Equal(t, id, got.ID())
	_, hasAge := got["age"]
	assert.False(t, hasAge)
}

func TestUpdateOperatorsSetIncPush(t *testing.T) {
	c := New("carts", nil, nil, zerolog.Nop())
	id, _ := c.Insert(record.Record{"count": int64(1), "items": []any{"a"}})

	_, _, err := c.Update(query.Query{"_id": id}, record.Record{
		"$set":  map[string]any{"status": "active"},
		"$inc":  map[string]any{"count": int64(2)},
		"$push": map[string]any{"items": "b"},
	})
	require.NoError(t, err)

	got := c.FindOne(query.Query{"_id": id})
	assert.Equal(t, "active", got["status"])
	assert.Equal(t, float64(3), mustFloat(got["count"]))
	assert.Equal(t, []any{"a", "b"}, got["items"])
}

func TestRemoveDeletesMatchingRecords(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	c.Insert(record.Record{"status": "inactive"})
	c.Insert(record.Record{"status": "active"})

	n, err := c.Remove(query.Query{"status": "inactive"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Len())
}

func TestFindSortLimitSkipAndProjection(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	c.Insert(record.Record{"name": "b", "age": int64(2)})
	c.Insert(record.Record{"name": "a", "age": int64(1)})
	c.Insert(record.Record{"name": "c", "age": int64(3)})

	res := c.Find(query.Query{}, FindOptions{
		Sort:       []SortKey{{Field: "age"}},
		Skip:       1,
		Limit:      1,
		Projection: []string{"name"},
	})
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0]["name"])
	_, hasAge := res[0]["age"]
	assert.False(t, hasAge)
}

func TestPublishesChangeEventsOnMutations(t *testing.T) {
	bus := changestream.NewBus(16, zerolog.Nop())
	defer bus.Close()
	c := New("users", bus, nil, zerolog.Nop())

	events := make(chan changestream.Event, 8)
	bus.Subscribe(changestream.Filter{Collection: "users"}, func(ev changestream.Event) {
		events <- ev
	})

	id, err := c.Insert(record.Record{"name": "alice"})
	require.NoError(t, err)
	_, _, err = c.Update(query.Query{"_id": id}, record.Record{"name": "alicia"})
	require.NoError(t, err)
	_, err = c.Remove(query.Query{"_id": id})
	require.NoError(t, err)

	var seen []changestream.ChangeType
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			seen = append(seen, ev.Type)
			if ev.Type == changestream.Update {
				assert.Equal(t, "alice", ev.OldDocument["name"])
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for change event")
		}
	}
	assert.Equal(t, []changestream.ChangeType{changestream.Insert, changestream.Update, changestream.Remove}, seen)
}

func TestBulkInsertPartialSuccessOnTimeout(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	records := make([]record.Record, 5)
	for i := range records {
		records[i] = record.Record{"n": i}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ids, err := c.BulkInsert(ctx, records, BulkInsertOptions{BatchSize: 1})
	require.Error(t, err)
	assert.True(t, monerr.Is(err, monerr.KindTimeout))
	assert.Empty(t, ids)
}

func TestCleanupExpiredRemovesAndPublishes(t *testing.T) {
	c := New("sessions", nil, nil, zerolog.Nop())
	_, err := c.CreateIndex("by_expiry", []string{"expiresAt"}, index.Options{TTLSeconds: 1})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = c.Insert(record.Record{"expiresAt": past})
	require.NoError(t, err)

	n := c.CleanupExpired(time.Now())
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, c.Len())
}

func mustFloat(v any) float64 {
	f, _ := record.AsFloat64(v)
	return f
}

func TestFindUsesIndexLookupForEqualityQuery(t *testing.T) {
	c := New("users", nil, nil, zerolog.Nop())
	_, err := c.CreateIndex("by_email", []string{"email"}, index.Options{Unique: true})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"_id": "a", "email": "a@x", "name": "alice"})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"_id": "b", "email": "b@x", "name": "bob"})
	require.NoError(t, err)

	got := c.FindOne(query.Query{"email": "b@x"})
	require.NotNil(t, got)
	assert.Equal(t, "bob", got["name"])

	assert.Equal(t, 0, c.Count(query.Query{"email": "missing@x"}))
}

func TestAggregateGroupsByField(t *testing.T) {
	c := New("orders", nil, nil, zerolog.Nop())
	_, err := c.Insert(record.Record{"dept": "E", "salary": int64(50)})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"dept": "E", "salary": int64(70)})
	require.NoError(t, err)
	_, err = c.Insert(record.Record{"dept": "S", "salary": int64(40)})
	require.NoError(t, err)

	out, err := c.Aggregate(query.Query{}, []planner.Stage{
		{Op: "group", Spec: map[string]any{
			"_id": "$dept",
			"avg": map[string]any{"$avg": "$salary"},
		}},
		{Op: "sort", Spec: map[string]int{"avg": -1}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "E", out[0]["_id"])
	assert.Equal(t, float64(60), out[0]["avg"])
}
