// Package memory is an in-process document store with the same query
// semantics as the database-backed stores. It backs tests and the "memory"
// store driver.
package memory

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"lumen/internal/query"
	"lumen/internal/store"
	"lumen/internal/store/bsondoc"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Collection holds documents of type T as BSON maps in insertion order.
type Collection[T any] struct {
	name string

	mu    sync.RWMutex
	order []string
	docs  map[string]bson.M
}

var _ store.Collection[struct{}] = (*Collection[struct{}])(nil)

// NewCollection returns an empty collection.
func NewCollection[T any](name string) *Collection[T] {
	return &Collection[T]{
		name: name,
		docs: make(map[string]bson.M),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) decode(op string, doc bson.M) (*T, error) {
	out := new(T)
	if err := bsondoc.ToStruct(doc, out); err != nil {
		return nil, store.Wrap(c.name, op, err)
	}
	return out, nil
}

// FindByID returns the document with id, or nil.
func (c *Collection[T]) FindByID(_ context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, nil
	}
	return c.decode("find_by_id", doc)
}

// FindByIDs returns the documents whose ids are listed, skipping unknown ids.
func (c *Collection[T]) FindByIDs(_ context.Context, ids []string) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*T, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		doc, ok := c.docs[id]
		if !ok {
			continue
		}
		v, err := c.decode("find_by_ids", doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) matching(p query.Predicate) []bson.M {
	if p.IsNothing() {
		return nil
	}
	var out []bson.M
	for _, id := range c.order {
		doc := c.docs[id]
		if p.Matches(bsondoc.Record(doc)) {
			out = append(out, doc)
		}
	}
	return out
}

// FindOne returns the first match in insertion order, or nil.
func (c *Collection[T]) FindOne(_ context.Context, p query.Predicate) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := c.matching(p)
	if len(docs) == 0 {
		return nil, nil
	}
	return c.decode("find_one", docs[0])
}

// Find returns matches sorted by page.SortField then _id, then windowed.
func (c *Collection[T]) Find(_ context.Context, p query.Predicate, page store.Page) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := c.matching(p)
	if page.SortField != "" {
		slices.SortStableFunc(docs, func(a, b bson.M) int {
			cmp := bsondoc.Compare(a[page.SortField], b[page.SortField])
			if cmp == 0 {
				cmp = bsondoc.Compare(a["_id"], b["_id"])
			}
			if page.Descending {
				return -cmp
			}
			return cmp
		})
	}

	if page.Skip > 0 {
		if page.Skip >= len(docs) {
			docs = nil
		} else {
			docs = docs[page.Skip:]
		}
	}
	if page.Limit > 0 && len(docs) > page.Limit {
		docs = docs[:page.Limit]
	}
	return c.decodeAll("find", docs)
}

// Sample returns up to n matches chosen uniformly at random.
func (c *Collection[T]) Sample(_ context.Context, p query.Predicate, n int) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := c.matching(p)
	rand.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
	if n >= 0 && len(docs) > n {
		docs = docs[:n]
	}
	return c.decodeAll("sample", docs)
}

func (c *Collection[T]) decodeAll(op string, docs []bson.M) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v, err := c.decode(op, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Count returns the number of matches.
func (c *Collection[T]) Count(_ context.Context, p query.Predicate) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return int64(len(c.matching(p))), nil
}

// Insert stores doc. The document must carry a string "_id".
func (c *Collection[T]) Insert(_ context.Context, doc *T) error {
	m, err := bsondoc.FromStruct(doc)
	if err != nil {
		return store.Wrap(c.name, "insert", err)
	}
	id, ok := bsondoc.ID(m)
	if !ok {
		return store.Wrap(c.name, "insert", fmt.Errorf("document has no string _id"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return store.Wrap(c.name, "insert", fmt.Errorf("%w: _id %q", store.ErrDuplicateKey, id))
	}
	id = strings.Clone(id)
	c.docs[id] = m
	c.order = append(c.order, id)
	return nil
}

// mutate applies fn to a copy of the document and commits it in place. The
// map entry is never reassigned: id may alias a caller buffer, and assigning
// through it would replace the stored key.
func (c *Collection[T]) mutate(op, id string, fn func(bson.M) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return store.Wrap(c.name, op, store.ErrNotFound)
	}
	next := maps.Clone(doc)
	if err := fn(next); err != nil {
		return store.Wrap(c.name, op, err)
	}
	clear(doc)
	maps.Copy(doc, next)
	return nil
}

// UpdateByID applies patch to the document with id.
func (c *Collection[T]) UpdateByID(_ context.Context, id string, patch store.Patch) error {
	return c.mutate("update", id, func(doc bson.M) error {
		return bsondoc.ApplyPatch(doc, patch)
	})
}

// DeleteByID removes the document with id.
func (c *Collection[T]) DeleteByID(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return store.Wrap(c.name, "delete", store.ErrNotFound)
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return nil
}

// AddToSet implements store.Collection.
func (c *Collection[T]) AddToSet(_ context.Context, id, field string, value any) error {
	return c.mutate("add_to_set", id, func(doc bson.M) error {
		return bsondoc.AddToSet(doc, field, value)
	})
}

// Push implements store.Collection.
func (c *Collection[T]) Push(_ context.Context, id, field string, value any) error {
	return c.mutate("push", id, func(doc bson.M) error {
		return bsondoc.Push(doc, field, value)
	})
}

// Pull implements store.Collection.
func (c *Collection[T]) Pull(_ context.Context, id, field string, value any) error {
	return c.mutate("pull", id, func(doc bson.M) error {
		return bsondoc.Pull(doc, field, value)
	})
}

// PullWhere implements store.Collection.
func (c *Collection[T]) PullWhere(_ context.Context, id, field string, match query.Term) error {
	return c.mutate("pull", id, func(doc bson.M) error {
		return bsondoc.PullWhere(doc, field, match)
	})
}
