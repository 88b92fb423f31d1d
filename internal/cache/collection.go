package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lumen/internal/observability"
	"lumen/internal/query"
	"lumen/internal/store"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultTTL is how long a cached document lives without being invalidated.
const DefaultTTL = 5 * time.Minute

// Collection is a read-through cache over the id lookups of a store
// collection. Predicate queries always go to the store. Every mutation
// evicts the document's key and bumps its write counter, and a fill that
// overlaps a write is dropped. Redis failures fall back to the store.
type Collection[T any] struct {
	store.Collection[T]
	client *redis.Client
	ttl    time.Duration
}

var _ store.Collection[struct{}] = (*Collection[struct{}])(nil)

// NewCollection wraps inner with a cache stored in client.
func NewCollection[T any](inner store.Collection[T], client *redis.Client, ttl time.Duration) *Collection[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Collection[T]{Collection: inner, client: client, ttl: ttl}
}

// Key returns the Redis key caching the document with id.
func (c *Collection[T]) Key(id string) string {
	return "lumen:" + c.Name() + ":" + id
}

func (c *Collection[T]) warn(ctx context.Context, msg string, err error) {
	observability.Logger.WarnContext(ctx, msg,
		slog.String("collection", c.Name()),
		slog.String("error", err.Error()),
	)
}

// errStale aborts a cache fill that raced a write.
var errStale = errors.New("cache fill raced a write")

// versionKey counts the writes to the document with id. Fills are dropped
// when it moves while the document is loaded from the store.
func (c *Collection[T]) versionKey(id string) string {
	return c.Key(id) + ":v"
}

// lookup reads the cached documents and write counters of ids in one MGET.
func (c *Collection[T]) lookup(ctx context.Context, ids []string) (docs, versions []any, err error) {
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, c.Key(id))
	}
	for _, id := range ids {
		keys = append(keys, c.versionKey(id))
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, err
	}
	return vals[:len(ids)], vals[len(ids):], nil
}

// fill caches loaded unless a write to any of ids was recorded after
// versions were read. A dropped fill costs the next read a miss.
func (c *Collection[T]) fill(ctx context.Context, ids []string, versions []any, loaded []*T) {
	if len(loaded) == 0 {
		return
	}
	vkeys := make([]string, len(ids))
	for i, id := range ids {
		vkeys[i] = c.versionKey(id)
	}

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.MGet(ctx, vkeys...).Result()
		if err != nil {
			return err
		}
		for i := range current {
			if current[i] != versions[i] {
				return errStale
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, v := range loaded {
				c.put(ctx, pipe, v)
			}
			return nil
		})
		return err
	}, vkeys...)

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		observability.CacheLookups.WithLabelValues(c.Name(), "stale_fill").Inc()
	default:
		c.warn(ctx, "cache write failed", err)
	}
}

func (c *Collection[T]) put(ctx context.Context, pipe redis.Cmdable, v *T) {
	data, err := bson.Marshal(v)
	if err != nil {
		c.warn(ctx, "cache encode failed", err)
		return
	}
	id, ok := bson.Raw(data).Lookup("_id").StringValueOK()
	if !ok {
		return
	}
	pipe.Set(ctx, c.Key(id), data, c.ttl)
}

func (c *Collection[T]) decode(raw any) (*T, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	v := new(T)
	if err := bson.Unmarshal([]byte(s), v); err != nil {
		return nil, false
	}
	return v, true
}

// FindByID serves id from Redis, loading and caching it on a miss.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	docs, versions, cacheErr := c.lookup(ctx, []string{id})
	if cacheErr != nil {
		c.warn(ctx, "cache read failed", cacheErr)
	} else if v, ok := c.decode(docs[0]); ok {
		observability.CacheLookups.WithLabelValues(c.Name(), "hit").Inc()
		return v, nil
	}
	observability.CacheLookups.WithLabelValues(c.Name(), "miss").Inc()

	v, err := c.Collection.FindByID(ctx, id)
	if err != nil || v == nil {
		return v, err
	}
	if cacheErr == nil {
		c.fill(ctx, []string{id}, versions, []*T{v})
	}
	return v, nil
}

// FindByIDs serves cached ids from one MGET and loads the rest in a single
// store call.
func (c *Collection[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}

	distinct := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	docs, versions, err := c.lookup(ctx, distinct)
	cacheUp := err == nil
	if !cacheUp {
		c.warn(ctx, "cache read failed", err)
	}

	out := make([]*T, 0, len(distinct))
	var (
		misses       []string
		missVersions []any
	)
	for i, id := range distinct {
		if cacheUp {
			if v, ok := c.decode(docs[i]); ok {
				out = append(out, v)
				continue
			}
			missVersions = append(missVersions, versions[i])
		}
		misses = append(misses, id)
	}
	observability.CacheLookups.WithLabelValues(c.Name(), "hit").Add(float64(len(out)))
	observability.CacheLookups.WithLabelValues(c.Name(), "miss").Add(float64(len(misses)))

	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := c.Collection.FindByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	if cacheUp {
		c.fill(ctx, misses, missVersions, loaded)
	}
	return append(out, loaded...), nil
}

// Invalidate records a write to id and evicts its cached document. It runs
// after the store write so an in-flight fill that loaded the old document
// sees the counter move.
func (c *Collection[T]) Invalidate(ctx context.Context, id string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(id))
		pipe.Expire(ctx, c.versionKey(id), c.ttl)
		pipe.Del(ctx, c.Key(id))
		return nil
	})
	if err != nil {
		c.warn(ctx, "cache invalidate failed", err)
	}
}

// UpdateByID implements store.Collection.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch store.Patch) error {
	defer c.Invalidate(ctx, id)
	return c.Collection.UpdateByID(ctx, id, patch)
}

// DeleteByID implements store.Collection.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	defer c.Invalidate(ctx, id)
	return c.Collection.DeleteByID(ctx, id)
}

// AddToSet implements store.Collection.
func (c *Collection[T]) AddToSet(ctx context.Context, id, field string, value any) error {
	defer c.Invalidate(ctx, id)
	return c.Collection.AddToSet(ctx, id, field, value)
}

// Push implements store.Collection.
func (c *Collection[T]) Push(ctx context.Context, id, field string, value any) error {
	defer c.Invalidate(ctx, id)
	return c.Collection.Push(ctx, id, field, value)
}

// Pull implements store.Collection.
func (c *Collection[T]) Pull(ctx context.Context, id, field string, value any) error {
	defer c.Invalidate(ctx, id)
	return c.Collection.Pull(ctx, id, field, value)
}

// PullWhere implements store.Collection.
func (c *Collection[T]) PullWhere(ctx context.Context, id, field string, match query.Term) error {
	defer c.Invalidate(ctx, id)
	return c.Collection.PullWhere(ctx, id, field, match)
}
