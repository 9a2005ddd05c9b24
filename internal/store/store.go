// Package store provides the opaque key-value persistence boundary.
//
// The pipeline only ever gets and sets JSON documents by key; the backing
// engine is interchangeable. Two adapters ship with the binary: a Postgres
// one for real deployments and an in-memory one for tests and DSN-less runs.
// Writes are best-effort from the pipeline's perspective: a failed write is
// logged and the in-memory state stays authoritative for the session.
package store

import (
	"context"
	"errors"
)

// ErrNotFound indicates the key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store is the get/set contract the pipeline persists through. Get
// unmarshals the stored JSON document into target and returns ErrNotFound
// for absent keys.
type Store interface {
	Get(ctx context.Context, key string, target interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
