package memory

import (
	"context"
	"testing"
	"unsafe"

	"lumen/internal/query"
	"lumen/internal/store"
	"lumen/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Collection[storetest.Doc] {
		return NewCollection[storetest.Doc]("docs")
	})
}

func TestCollection_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[storetest.Doc]("docs")
	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "a", Tags: []string{"x"}}))

	got, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	got.Tags[0] = "mutated"

	again, err := c.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.Tags)
}

func TestCollection_FindOneInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[storetest.Doc]("docs")
	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "b", UID: "u"}))
	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "a", UID: "u"}))

	got, err := c.FindOne(ctx, query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "u"}}})
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, "docs", c.Name())
}

func TestCollection_MutationKeepsKeyWhenIDBufferIsReused(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[storetest.Doc]("docs")
	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "p1", UID: "u"}))

	// The id aliases a buffer that is overwritten afterwards, as a request
	// parameter backed by a reused request buffer is.
	buf := []byte("p1")
	id := unsafe.String(&buf[0], len(buf))
	require.NoError(t, c.AddToSet(ctx, id, "tags", "x"))
	require.NoError(t, c.UpdateByID(ctx, id, store.Patch{Set: map[string]any{"content": "edited"}}))
	copy(buf, "zz")

	got, err := c.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.Equal(t, "edited", got.Content)

	byUID, err := c.Find(ctx, query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "u"}}}, store.Page{})
	require.NoError(t, err)
	require.Len(t, byUID, 1)
	assert.Equal(t, "p1", byUID[0].ID)
}
