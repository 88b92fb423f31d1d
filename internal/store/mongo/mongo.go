// Package mongo implements store.Collection on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"lumen/internal/query"
	"lumen/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string, maxPoolSize uint64) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if maxPoolSize > 0 {
		opts.SetMaxPoolSize(maxPoolSize)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Collection is a store.Collection backed by a MongoDB collection.
type Collection[T any] struct {
	coll *mongo.Collection
}

var _ store.Collection[struct{}] = (*Collection[struct{}])(nil)

// NewCollection returns the collection name in db.
func NewCollection[T any](db *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{coll: db.Collection(name)}
}

// EnsureIndexes creates the created_at index used by feed ordering plus any
// extra single-field indexes.
func (c *Collection[T]) EnsureIndexes(ctx context.Context, unique ...string) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	for _, field := range unique {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return c.wrap("create_indexes", err)
	}
	return nil
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.coll.Name()
}

func (c *Collection[T]) wrap(op string, err error) error {
	return store.Wrap(c.coll.Name(), op, err)
}

// FindByID implements store.Collection.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return c.findOne(ctx, "find_by_id", bson.D{{Key: "_id", Value: id}})
}

// FindByIDs implements store.Collection.
func (c *Collection[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	cur, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, c.wrap("find_by_ids", err)
	}
	return c.all(ctx, "find_by_ids", cur)
}

// FindOne implements store.Collection.
func (c *Collection[T]) FindOne(ctx context.Context, p query.Predicate) (*T, error) {
	return c.findOne(ctx, "find_one", Filter(p))
}

func (c *Collection[T]) findOne(ctx context.Context, op string, filter bson.D) (*T, error) {
	out := new(T)
	err := c.coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, c.wrap(op, err)
	}
	return out, nil
}

// Find implements store.Collection.
func (c *Collection[T]) Find(ctx context.Context, p query.Predicate, page store.Page) ([]*T, error) {
	opts := options.Find()
	if order := Sort(page); order != nil {
		opts.SetSort(order)
	}
	if page.Skip > 0 {
		opts.SetSkip(int64(page.Skip))
	}
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}

	cur, err := c.coll.Find(ctx, Filter(p), opts)
	if err != nil {
		return nil, c.wrap("find", err)
	}
	return c.all(ctx, "find", cur)
}

// Sample implements store.Collection with a $match + $sample pipeline.
func (c *Collection[T]) Sample(ctx context.Context, p query.Predicate, n int) ([]*T, error) {
	cur, err := c.coll.Aggregate(ctx, SamplePipeline(p, n))
	if err != nil {
		return nil, c.wrap("sample", err)
	}
	return c.all(ctx, "sample", cur)
}

func (c *Collection[T]) all(ctx context.Context, op string, cur *mongo.Cursor) ([]*T, error) {
	var docs []*T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, c.wrap(op, err)
	}
	if docs == nil {
		docs = []*T{}
	}
	return docs, nil
}

// Count implements store.Collection.
func (c *Collection[T]) Count(ctx context.Context, p query.Predicate) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, Filter(p))
	if err != nil {
		return 0, c.wrap("count", err)
	}
	return n, nil
}

// Insert implements store.Collection.
func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = fmt.Errorf("%w: %w", store.ErrDuplicateKey, err)
		}
		return c.wrap("insert", err)
	}
	return nil
}

func (c *Collection[T]) update(ctx context.Context, op, id string, update bson.D) error {
	res, err := c.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return c.wrap(op, err)
	}
	if res.MatchedCount == 0 {
		return c.wrap(op, store.ErrNotFound)
	}
	return nil
}

// UpdateByID implements store.Collection.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch store.Patch) error {
	if patch.IsEmpty() {
		n, err := c.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
		if err != nil {
			return c.wrap("update", err)
		}
		if n == 0 {
			return c.wrap("update", store.ErrNotFound)
		}
		return nil
	}
	return c.update(ctx, "update", id, PatchUpdate(patch))
}

// DeleteByID implements store.Collection.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return c.wrap("delete", err)
	}
	if res.DeletedCount == 0 {
		return c.wrap("delete", store.ErrNotFound)
	}
	return nil
}

// AddToSet implements store.Collection.
func (c *Collection[T]) AddToSet(ctx context.Context, id, field string, value any) error {
	return c.update(ctx, "add_to_set", id, bson.D{{Key: "$addToSet", Value: bson.D{{Key: field, Value: value}}}})
}

// Push implements store.Collection.
func (c *Collection[T]) Push(ctx context.Context, id, field string, value any) error {
	return c.update(ctx, "push", id, bson.D{{Key: "$push", Value: bson.D{{Key: field, Value: value}}}})
}

// Pull implements store.Collection.
func (c *Collection[T]) Pull(ctx context.Context, id, field string, value any) error {
	return c.update(ctx, "pull", id, bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: value}}}})
}

// PullWhere implements store.Collection.
func (c *Collection[T]) PullWhere(ctx context.Context, id, field string, match query.Term) error {
	cond := bson.D{{Key: match.Field, Value: match.Value}}
	return c.update(ctx, "pull", id, bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: cond}}}})
}
