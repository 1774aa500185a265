package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a write would violate a unique index.
	ErrDuplicate = errors.New("store: unique index violation")
	// ErrUnavailable wraps transport and backend failures.
	ErrUnavailable = errors.New("store: backend unavailable")
	// ErrConflict is returned when an optimistic write kept losing races.
	ErrConflict = errors.New("store: write conflict")
)

// Index is one secondary index entry of a record.
type Index struct {
	Field  string
	Value  string
	Unique bool
}

// Schema tells a collection how to address records of type T.
type Schema[T any] struct {
	// Name is the collection name. It is part of every backend key.
	Name string
	// Key returns the primary key of a record.
	Key func(T) string
	// Indexes returns the secondary index entries of a record. May be nil.
	Indexes func(T) []Index
}

// Collection is the narrow store contract consumed by the token managers and
// the engine.
type Collection[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Put(ctx context.Context, record T) error
	Delete(ctx context.Context, key string) error
	FindByIndex(ctx context.Context, field, value string) ([]T, error)
	DeleteAllByIndex(ctx context.Context, field, value string) (int, error)
	NextID(ctx context.Context) (int64, error)
}

func (s Schema[T]) validate() error {
	if s.Name == "" {
		return errors.New("store: schema name required")
	}
	if s.Key == nil {
		return errors.New("store: schema key func required")
	}
	return nil
}

func (s Schema[T]) indexes(record T) []Index {
	if s.Indexes == nil {
		return nil
	}
	return s.Indexes(record)
}
