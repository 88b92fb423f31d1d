// Package store defines the document collection interface the repositories
// query through, plus its error types.
package store

import (
	"context"
	"errors"
	"fmt"

	"lumen/internal/query"
)

var (
	// ErrNotFound is returned by mutations when no document has the id.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned by Insert when the id is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Error wraps a failure reported by a backing store.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Collection, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *Error, or nil when err is nil.
func Wrap(collection, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Collection: collection, Err: err}
}

// Page orders and windows a Find. Documents that tie on SortField are
// ordered by _id in the same direction, so windows over equal timestamps
// are stable.
type Page struct {
	SortField  string
	Descending bool
	Skip       int
	Limit      int
}

// Patch sets and unsets top-level fields.
type Patch struct {
	Set   map[string]any
	Unset []string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0
}

// Collection is a set of documents of type T keyed by a string "_id".
//
// Finds return (nil, nil) when nothing matches. Mutations addressed by id
// return ErrNotFound when the document does not exist.
type Collection[T any] interface {
	Name() string

	FindByID(ctx context.Context, id string) (*T, error)
	FindByIDs(ctx context.Context, ids []string) ([]*T, error)
	FindOne(ctx context.Context, p query.Predicate) (*T, error)
	Find(ctx context.Context, p query.Predicate, page Page) ([]*T, error)
	// Sample draws up to n matching documents uniformly at random.
	Sample(ctx context.Context, p query.Predicate, n int) ([]*T, error)
	Count(ctx context.Context, p query.Predicate) (int64, error)

	Insert(ctx context.Context, doc *T) error
	UpdateByID(ctx context.Context, id string, patch Patch) error
	DeleteByID(ctx context.Context, id string) error

	// AddToSet appends value to the array field unless already present.
	AddToSet(ctx context.Context, id, field string, value any) error
	// Push appends value to the array field.
	Push(ctx context.Context, id, field string, value any) error
	// Pull removes every element equal to value from the array field.
	Pull(ctx context.Context, id, field string, value any) error
	// PullWhere removes every embedded document whose match.Field equals
	// match.Value from the array field.
	PullWhere(ctx context.Context, id, field string, match query.Term) error
}
