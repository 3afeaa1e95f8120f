// Package query declares the cacheable reads of the admin client. Each read is a
// descriptor pairing a hierarchical Key with the function that loads it, so that
// invalidating a key also reaches every query nested below it.
package query

import (
	"context"
	"fmt"
)

// FetchFunc loads fresh data for a query.
type FetchFunc func(ctx context.Context) (any, error)

// Descriptor is the type-erased form of a query, as stored by the cache.
type Descriptor struct {
	Key   Key
	Fetch FetchFunc
}

// Query is a typed read. Instances are immutable values.
type Query[T any] struct {
	Key   Key
	Fetch func(ctx context.Context) (T, error)
}

// New builds a typed query.
func New[T any](key Key, fetch func(ctx context.Context) (T, error)) Query[T] {
	return Query[T]{Key: key, Fetch: fetch}
}

// Descriptor erases the result type of q.
func (q Query[T]) Descriptor() Descriptor {
	fetch := q.Fetch
	return Descriptor{
		Key: q.Key,
		Fetch: func(ctx context.Context) (any, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Cast converts a cached value back to T.
func Cast[T any](key Key, v any) (T, error) {
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("query %s: cached value is %T, not %T", key, v, zero)
	}
	return out, nil
}
