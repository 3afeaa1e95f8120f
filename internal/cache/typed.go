package cache

import (
	"context"

	"github.com/uparkt/parkadmin/internal/query"
)

// Get is Cache.Get for a typed query.
func Get[T any](ctx context.Context, c *Cache, q query.Query[T]) (T, error) {
	return typed[T](q.Key)(c.Get(ctx, q.Descriptor()))
}

// Fetch is Cache.Fetch for a typed query.
func Fetch[T any](ctx context.Context, c *Cache, q query.Query[T]) (T, error) {
	return typed[T](q.Key)(c.Fetch(ctx, q.Descriptor()))
}

// Ensure is Cache.Ensure for a typed query.
func Ensure[T any](ctx context.Context, c *Cache, q query.Query[T]) (T, error) {
	return typed[T](q.Key)(c.Ensure(ctx, q.Descriptor()))
}

func typed[T any](key query.Key) func(any, error) (T, error) {
	return func(v any, err error) (T, error) {
		if err != nil {
			var zero T
			return zero, err
		}
		return query.Cast[T](key, v)
	}
}
