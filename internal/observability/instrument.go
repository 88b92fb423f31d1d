package observability

import (
	"context"
	"errors"
	"time"

	"lumen/internal/query"
	"lumen/internal/store"
)

// InstrumentedCollection records latency, errors and a span for every call
// to the wrapped collection.
type InstrumentedCollection[T any] struct {
	inner store.Collection[T]
}

var _ store.Collection[struct{}] = (*InstrumentedCollection[struct{}])(nil)

// Instrument wraps c with store metrics and tracing.
func Instrument[T any](c store.Collection[T]) *InstrumentedCollection[T] {
	return &InstrumentedCollection[T]{inner: c}
}

// track starts timing operation. ErrNotFound is an answer, not a failure,
// and is neither counted nor recorded on the span.
func (c *InstrumentedCollection[T]) track(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	name := c.inner.Name()
	span, ctx := StartStoreSpan(ctx, name, operation)
	return ctx, func(err error) {
		defer span.End()
		StoreOperationLatency.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			StoreOperationErrors.WithLabelValues(name, operation).Inc()
			span.SetError(err)
		}
	}
}

// Name implements store.Collection.
func (c *InstrumentedCollection[T]) Name() string {
	return c.inner.Name()
}

// FindByID implements store.Collection.
func (c *InstrumentedCollection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	ctx, done := c.track(ctx, "find_by_id")
	v, err := c.inner.FindByID(ctx, id)
	done(err)
	return v, err
}

// FindByIDs implements store.Collection.
func (c *InstrumentedCollection[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	ctx, done := c.track(ctx, "find_by_ids")
	v, err := c.inner.FindByIDs(ctx, ids)
	done(err)
	return v, err
}

// FindOne implements store.Collection.
func (c *InstrumentedCollection[T]) FindOne(ctx context.Context, p query.Predicate) (*T, error) {
	ctx, done := c.track(ctx, "find_one")
	v, err := c.inner.FindOne(ctx, p)
	done(err)
	return v, err
}

// Find implements store.Collection.
func (c *InstrumentedCollection[T]) Find(ctx context.Context, p query.Predicate, page store.Page) ([]*T, error) {
	ctx, done := c.track(ctx, "find")
	v, err := c.inner.Find(ctx, p, page)
	done(err)
	return v, err
}

// Sample implements store.Collection.
func (c *InstrumentedCollection[T]) Sample(ctx context.Context, p query.Predicate, n int) ([]*T, error) {
	ctx, done := c.track(ctx, "sample")
	v, err := c.inner.Sample(ctx, p, n)
	done(err)
	return v, err
}

// Count implements store.Collection.
func (c *InstrumentedCollection[T]) Count(ctx context.Context, p query.Predicate) (int64, error) {
	ctx, done := c.track(ctx, "count")
	n, err := c.inner.Count(ctx, p)
	done(err)
	return n, err
}

// Insert implements store.Collection.
func (c *InstrumentedCollection[T]) Insert(ctx context.Context, doc *T) error {
	ctx, done := c.track(ctx, "insert")
	err := c.inner.Insert(ctx, doc)
	done(err)
	return err
}

// UpdateByID implements store.Collection.
func (c *InstrumentedCollection[T]) UpdateByID(ctx context.Context, id string, patch store.Patch) error {
	ctx, done := c.track(ctx, "update")
	err := c.inner.UpdateByID(ctx, id, patch)
	done(err)
	return err
}

// DeleteByID implements store.Collection.
func (c *InstrumentedCollection[T]) DeleteByID(ctx context.Context, id string) error {
	ctx, done := c.track(ctx, "delete")
	err := c.inner.DeleteByID(ctx, id)
	done(err)
	return err
}

// AddToSet implements store.Collection.
func (c *InstrumentedCollection[T]) AddToSet(ctx context.Context, id, field string, value any) error {
	ctx, done := c.track(ctx, "add_to_set")
	err := c.inner.AddToSet(ctx, id, field, value)
	done(err)
	return err
}

// Push implements store.Collection.
func (c *InstrumentedCollection[T]) Push(ctx context.Context, id, field string, value any) error {
	ctx, done := c.track(ctx, "push")
	err := c.inner.Push(ctx, id, field, value)
	done(err)
	return err
}

// Pull implements store.Collection.
func (c *InstrumentedCollection[T]) Pull(ctx context.Context, id, field string, value any) error {
	ctx, done := c.track(ctx, "pull")
	err := c.inner.Pull(ctx, id, field, value)
	done(err)
	return err
}

// PullWhere implements store.Collection.
func (c *InstrumentedCollection[T]) PullWhere(ctx context.Context, id, field string, match query.Term) error {
	ctx, done := c.track(ctx, "pull_where")
	err := c.inner.PullWhere(ctx, id, field, match)
	done(err)
	return err
}
