// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/query"
	"lumen/internal/store"
)

// newestFirst is the ordering of every non-random fetch.
func newestFirst(opts query.Options) store.Page {
	return store.Page{
		SortField:  models.FieldCreatedAt,
		Descending: true,
		Skip:       opts.Skip,
		Limit:      opts.Limit,
	}
}

// getOne resolves a single record: by id when opts.FindByID is set, else the
// first match of the filter.
func getOne[T any, F query.Filter](
	ctx context.Context,
	c store.Collection[T],
	log *observability.RepoLogger,
	f F,
	id string,
	opts query.Options,
) (*T, error) {
	if opts.FindByID {
		if id == "" {
			return nil, models.NewValidationError("An id is required to find by id")
		}
		v, err := c.FindByID(ctx, id)
		if err != nil {
			log.LogError(ctx, err, "find_by_id")
			return nil, err
		}
		return v, nil
	}

	v, err := c.FindOne(ctx, query.Build(f, opts))
	if err != nil {
		log.LogError(ctx, err, "find_one")
		return nil, err
	}
	return v, nil
}

// getMany runs p with opts' ordering, windowing and sampling.
func getMany[T any](
	ctx context.Context,
	c store.Collection[T],
	log *observability.RepoLogger,
	p query.Predicate,
	opts query.Options,
) ([]*T, error) {
	if p.IsNothing() {
		return []*T{}, nil
	}

	var (
		out []*T
		err error
		op  string
	)
	if opts.Random {
		op = "sample"
		out, err = c.Sample(ctx, p, opts.SampleSize())
	} else {
		op = "find"
		out, err = c.Find(ctx, p, newestFirst(opts))
	}
	if err != nil {
		log.LogError(ctx, err, op)
		return nil, err
	}
	if out == nil {
		out = []*T{}
	}
	return out, nil
}

// mutation maps a missing record to a NOT_FOUND error and logs anything else.
func mutation(ctx context.Context, log *observability.RepoLogger, op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	log.LogError(ctx, err, op)
	return err
}
