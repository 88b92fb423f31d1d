// Package storetest is a conformance suite every store.Collection
// implementation runs in its own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lumen/internal/query"
	"lumen/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note is an embedded element of Doc.
type Note struct {
	ID   string `bson:"_id"`
	UID  string `bson:"uid"`
	Text string `bson:"text"`
}

// Doc is the document type exercised by the suite.
type Doc struct {
	ID        string    `bson:"_id"`
	UID       string    `bson:"uid"`
	Content   string    `bson:"content"`
	Tags      []string  `bson:"tags"`
	Notes     []Note    `bson:"notes"`
	Extra     string    `bson:"extra,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// Factory returns an empty collection.
type Factory func(t *testing.T) store.Collection[Doc]

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, c store.Collection[Doc], n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, c.Insert(ctx, &Doc{
			ID:        fmt.Sprintf("d%02d", i),
			UID:       fmt.Sprintf("u%d", i%3),
			Content:   fmt.Sprintf("content %d", i),
			Tags:      []string{},
			Notes:     []Note{},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func uidIn(uids ...string) query.Predicate {
	clauses := make([]query.Predicate, 0, len(uids))
	for _, uid := range uids {
		clauses = append(clauses, query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: uid}}})
	}
	return query.Predicate{Op: query.OpAny, Clauses: clauses}
}

func docIDs(docs []*Doc) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

// Run executes the suite against collections produced by newCollection.
func Run(t *testing.T, newCollection Factory) {
	ctx := context.Background()

	t.Run("find by id", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 3)

		got, err := c.FindByID(ctx, "d01")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UID)
		assert.True(t, base.Add(time.Minute).Equal(got.CreatedAt))

		missing, err := c.FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("find by ids skips unknown", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 4)

		got, err := c.FindByIDs(ctx, []string{"d00", "d03", "zz", "d00"})
		require.NoError(t, err)
		ids := make([]string, 0, len(got))
		for _, d := range got {
			ids = append(ids, d.ID)
		}
		assert.ElementsMatch(t, []string{"d00", "d03"}, ids)

		none, err := c.FindByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("duplicate insert", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 1)

		err := c.Insert(ctx, &Doc{ID: "d00", CreatedAt: base})
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrDuplicateKey))
		var se *store.Error
		assert.True(t, errors.As(err, &se))
	})

	t.Run("find sorted newest first with window", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 9)

		page := store.Page{SortField: "created_at", Descending: true, Skip: 2, Limit: 3}
		got, err := c.Find(ctx, query.All(), page)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "d06", got[0].ID)
		assert.Equal(t, "d05", got[1].ID)
		assert.Equal(t, "d04", got[2].ID)

		past, err := c.Find(ctx, query.All(), store.Page{SortField: "created_at", Descending: true, Skip: 50, Limit: 3})
		require.NoError(t, err)
		assert.Empty(t, past)
	})

	t.Run("find breaks timestamp ties by id", func(t *testing.T) {
		c := newCollection(t)
		for _, id := range []string{"t1", "t3", "t2"} {
			require.NoError(t, c.Insert(ctx, &Doc{ID: id, Tags: []string{}, Notes: []Note{}, CreatedAt: base}))
		}

		desc, err := c.Find(ctx, query.All(), store.Page{SortField: "created_at", Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"t3", "t2", "t1"}, docIDs(desc))

		asc, err := c.Find(ctx, query.All(), store.Page{SortField: "created_at"})
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2", "t3"}, docIDs(asc))

		second, err := c.Find(ctx, query.All(), store.Page{SortField: "created_at", Descending: true, Skip: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"t2"}, docIDs(second))
	})

	t.Run("find contains ignores case", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 3)

		p := query.Predicate{Op: query.OpAny, Terms: []query.Term{{Field: "content", Value: query.Contains("CONTENT 2")}}}
		got, err := c.Find(ctx, p, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{"d02"}, docIDs(got))

		wild := query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "content", Value: query.Contains("%")}}}
		none, err := c.Find(ctx, wild, store.Page{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find with or and nor", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 9)

		in, err := c.Find(ctx, uidIn("u0", "u2"), store.Page{SortField: "created_at", Descending: true})
		require.NoError(t, err)
		assert.Len(t, in, 6)
		for _, d := range in {
			assert.NotEqual(t, "u1", d.UID)
		}

		excluded := uidIn("u0", "u2")
		excluded.Op = query.OpNone
		out, err := c.Find(ctx, excluded, store.Page{SortField: "created_at", Descending: true})
		require.NoError(t, err)
		assert.Len(t, out, 3)
		for _, d := range out {
			assert.Equal(t, "u1", d.UID)
		}

		nothing, err := c.Find(ctx, query.Nothing(), store.Page{})
		require.NoError(t, err)
		assert.Empty(t, nothing)

		emptyOr, err := c.Find(ctx, query.Predicate{Op: query.OpAny}, store.Page{})
		require.NoError(t, err)
		assert.Empty(t, emptyOr)
	})

	t.Run("find one and count", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 6)

		p := query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "u2"}, {Field: "content", Value: "content 5"}}}
		got, err := c.FindOne(ctx, p)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "d05", got.ID)

		missing, err := c.FindOne(ctx, query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "zz"}}})
		require.NoError(t, err)
		assert.Nil(t, missing)

		n, err := c.Count(ctx, uidIn("u1"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("sample respects predicate and size", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 12)

		excluded := uidIn("u0")
		excluded.Op = query.OpNone
		got, err := c.Sample(ctx, excluded, 5)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		seen := map[string]bool{}
		for _, d := range got {
			assert.NotEqual(t, "u0", d.UID)
			assert.False(t, seen[d.ID], "sample returned %s twice", d.ID)
			seen[d.ID] = true
		}

		small, err := c.Sample(ctx, uidIn("u0"), 9)
		require.NoError(t, err)
		assert.Len(t, small, 4)
	})

	t.Run("update and unset", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 1)

		require.NoError(t, c.UpdateByID(ctx, "d00", store.Patch{Set: map[string]any{"content": "edited", "extra": "x"}}))
		got, err := c.FindByID(ctx, "d00")
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Content)
		assert.Equal(t, "x", got.Extra)

		require.NoError(t, c.UpdateByID(ctx, "d00", store.Patch{Unset: []string{"extra"}}))
		got, err = c.FindByID(ctx, "d00")
		require.NoError(t, err)
		assert.Empty(t, got.Extra)

		err = c.UpdateByID(ctx, "nope", store.Patch{Set: map[string]any{"content": "x"}})
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("array operations", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 1)

		require.NoError(t, c.AddToSet(ctx, "d00", "tags", "a"))
		require.NoError(t, c.AddToSet(ctx, "d00", "tags", "a"))
		require.NoError(t, c.AddToSet(ctx, "d00", "tags", "b"))
		require.NoError(t, c.Push(ctx, "d00", "notes", Note{ID: "n1", UID: "u9", Text: "first"}))
		require.NoError(t, c.Push(ctx, "d00", "notes", Note{ID: "n2", UID: "u9", Text: "second"}))

		got, err := c.FindByID(ctx, "d00")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got.Tags)
		require.Len(t, got.Notes, 2)
		assert.Equal(t, "first", got.Notes[0].Text)

		require.NoError(t, c.Pull(ctx, "d00", "tags", "a"))
		require.NoError(t, c.Pull(ctx, "d00", "tags", "zz"))
		require.NoError(t, c.PullWhere(ctx, "d00", "notes", query.Term{Field: "_id", Value: "n1"}))

		got, err = c.FindByID(ctx, "d00")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, got.Tags)
		require.Len(t, got.Notes, 1)
		assert.Equal(t, "n2", got.Notes[0].ID)

		err = c.AddToSet(ctx, "nope", "tags", "a")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		c := newCollection(t)
		seed(t, c, 2)

		require.NoError(t, c.DeleteByID(ctx, "d00"))
		got, err := c.FindByID(ctx, "d00")
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := c.Count(ctx, query.All())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		err = c.DeleteByID(ctx, "d00")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})
}
