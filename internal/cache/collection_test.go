package cache

import (
	"context"
	"testing"
	"time"

	"lumen/internal/store"
	"lumen/internal/store/memory"
	"lumen/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCollection_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Collection[storetest.Doc] {
		_, client := setupRedis(t)
		return NewCollection[storetest.Doc](memory.NewCollection[storetest.Doc]("docs"), client, time.Minute)
	})
}

func TestCollection_FindByIDReadThrough(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	inner := memory.NewCollection[storetest.Doc]("docs")
	c := NewCollection[storetest.Doc](inner, client, time.Minute)

	require.NoError(t, inner.Insert(ctx, &storetest.Doc{ID: "a", Content: "v1"}))

	got, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
	assert.True(t, mr.Exists(c.Key("a")))

	// A write that bypasses the decorator is not seen until the key expires.
	require.NoError(t, inner.UpdateByID(ctx, "a", store.Patch{Set: map[string]any{"content": "v2"}}))
	got, err = c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)

	mr.FastForward(2 * time.Minute)
	got, err = c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
}

func TestCollection_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	c := NewCollection[storetest.Doc](memory.NewCollection[storetest.Doc]("docs"), client, time.Minute)

	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "a", Tags: []string{}}))
	_, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	require.True(t, mr.Exists(c.Key("a")))

	require.NoError(t, c.AddToSet(ctx, "a", "tags", "x"))
	assert.False(t, mr.Exists(c.Key("a")))

	got, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func TestCollection_FindByIDsMixesHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	c := NewCollection[storetest.Doc](memory.NewCollection[storetest.Doc]("docs"), client, time.Minute)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: id}))
	}
	_, err := c.FindByID(ctx, "a")
	require.NoError(t, err)

	got, err := c.FindByIDs(ctx, []string{"a", "b", "zz", "a"})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.True(t, mr.Exists(c.Key("b")))
	assert.False(t, mr.Exists(c.Key("zz")))
}

func TestCollection_RedisDownFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	inner := memory.NewCollection[storetest.Doc]("docs")
	c := NewCollection[storetest.Doc](inner, client, time.Minute)
	require.NoError(t, inner.Insert(ctx, &storetest.Doc{ID: "a", Content: "v1"}))

	mr.Close()

	got, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)

	many, err := c.FindByIDs(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestInitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := InitRedis(context.Background(), "redis://"+mr.Addr())
	require.NotNil(t, client)
	defer client.Close()

	assert.Nil(t, InitRedis(context.Background(), ""))
	assert.Nil(t, InitRedis(context.Background(), "redis://%zz"))
}

// racingInner runs onLoad once, after a lookup has read the document from
// the store and before the cache fills it.
type racingInner struct {
	store.Collection[storetest.Doc]
	onLoad func()
}

func (r *racingInner) race() {
	if f := r.onLoad; f != nil {
		r.onLoad = nil
		f()
	}
}

func (r *racingInner) FindByID(ctx context.Context, id string) (*storetest.Doc, error) {
	v, err := r.Collection.FindByID(ctx, id)
	r.race()
	return v, err
}

func (r *racingInner) FindByIDs(ctx context.Context, ids []string) ([]*storetest.Doc, error) {
	v, err := r.Collection.FindByIDs(ctx, ids)
	r.race()
	return v, err
}

func TestCollection_FillDroppedWhenWriteOverlapsLoad(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	inner := &racingInner{Collection: memory.NewCollection[storetest.Doc]("docs")}
	c := NewCollection[storetest.Doc](inner, client, time.Minute)
	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "a", Tags: []string{}}))

	inner.onLoad = func() {
		require.NoError(t, c.AddToSet(ctx, "a", "tags", "x"))
	}
	stale, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, stale.Tags, "the racing read still returns what it loaded")
	assert.False(t, mr.Exists(c.Key("a")), "the pre-write document is not cached")

	fresh, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, fresh.Tags)
	assert.True(t, mr.Exists(c.Key("a")))

	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "b", Tags: []string{}}))
	inner.onLoad = func() {
		require.NoError(t, c.Push(ctx, "b", "tags", "y"))
	}
	_, err = c.FindByIDs(ctx, []string{"b"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(c.Key("b")))

	many, err := c.FindByIDs(ctx, []string{"b"})
	require.NoError(t, err)
	require.Len(t, many, 1)
	assert.Equal(t, []string{"y"}, many[0].Tags)
}
