// Package cache is a small read-through cache for single entities fetched
// by id. Values are stored as JSON.
package cache

import (
	"context"
	"fmt"
)

// Cache stores JSON encoded values under string keys.
type Cache interface {
	// Get decodes the value stored at key into dst and reports whether it
	// was present.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func CustomerKey(id int64) string {
	return fmt.Sprintf("customer:%d", id)
}

func ProductKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// Noop never stores anything. It is used when no Redis address is
// configured.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, interface{}) error         { return nil }
func (Noop) Delete(context.Context, ...string) error                { return nil }
func (Noop) Close() error                                           { return nil }
