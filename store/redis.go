package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 4

// RedisCollection stores records of type T as JSON strings and keeps each
// secondary index as a Redis set of primary keys.
//
// Key layout, for prefix "ak" and collection "users":
//
//	ak:users:r:<key>            record document
//	ak:users:i:<field>:<value>  index set
//	ak:users:seq                id sequence
type RedisCollection[T any] struct {
	redis  redis.UniversalClient
	prefix string
	schema Schema[T]
}

// NewRedisCollection returns a Redis-backed collection.
func NewRedisCollection[T any](client redis.UniversalClient, prefix string, schema Schema[T]) (*RedisCollection[T], error) {
	if client == nil {
		return nil, errors.New("store: redis client required")
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ak"
	}
	return &RedisCollection[T]{
		redis:  client,
		prefix: prefix,
		schema: schema,
	}, nil
}

func (c *RedisCollection[T]) recordKey(key string) string {
	return c.prefix + ":" + c.schema.Name + ":r:" + key
}

func (c *RedisCollection[T]) indexKey(field, value string) string {
	return c.prefix + ":" + c.schema.Name + ":i:" + field + ":" + value
}

func (c *RedisCollection[T]) seqKey() string {
	return c.prefix + ":" + c.schema.Name + ":seq"
}

// Get loads one record by primary key.
func (c *RedisCollection[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	data, err := c.redis.Get(ctx, c.recordKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return zero, fmt.Errorf("store: decode %s/%s: %w", c.schema.Name, key, err)
	}
	return record, nil
}

// Put inserts or replaces a record and moves its index entries. A unique
// index already owned by a different key yields [ErrDuplicate] and leaves the
// stored state untouched.
func (c *RedisCollection[T]) Put(ctx context.Context, record T) error {
	key := c.schema.Key(record)
	if key == "" {
		return errors.New("store: empty record key")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", c.schema.Name, key, err)
	}

	next := c.schema.indexes(record)
	rk := c.recordKey(key)
	watched := []string{rk}
	for _, idx := range next {
		if idx.Unique {
			watched = append(watched, c.indexKey(idx.Field, idx.Value))
		}
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := c.loadIndexes(ctx, tx, rk)
			if err != nil {
				return err
			}

			for _, idx := range next {
				if !idx.Unique {
					continue
				}
				owners, err := tx.SMembers(ctx, c.indexKey(idx.Field, idx.Value)).Result()
				if err != nil {
					return err
				}
				for _, owner := range owners {
					if owner != key {
						return ErrDuplicate
					}
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, idx := range staleIndexes(prev, next) {
					pipe.SRem(ctx, c.indexKey(idx.Field, idx.Value), key)
				}
				pipe.Set(ctx, rk, data, 0)
				for _, idx := range next {
					pipe.SAdd(ctx, c.indexKey(idx.Field, idx.Value), key)
				}
				return nil
			})
			return err
		}, watched...)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrDuplicate):
			return ErrDuplicate
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return ErrConflict
}

// Delete removes a record and its index entries. Missing keys are a no-op.
func (c *RedisCollection[T]) Delete(ctx context.Context, key string) error {
	_, err := c.delete(ctx, key)
	return err
}

func (c *RedisCollection[T]) delete(ctx context.Context, key string) (bool, error) {
	rk := c.recordKey(key)

	for i := 0; i < maxWatchRetries; i++ {
		var deleted bool

		err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, rk).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}

			var record T
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, rk)
				for _, idx := range c.schema.indexes(record) {
					pipe.SRem(ctx, c.indexKey(idx.Field, idx.Value), key)
				}
				return nil
			})
			if err == nil {
				deleted = true
			}
			return err
		}, rk)

		switch {
		case err == nil:
			return deleted, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return false, ErrConflict
}

// FindByIndex returns every record whose index entry field equals value,
// ordered by primary key.
func (c *RedisCollection[T]) FindByIndex(ctx context.Context, field, value string) ([]T, error) {
	keys, err := c.redis.SMembers(ctx, c.indexKey(field, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = c.recordKey(k)
	}

	values, err := c.redis.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]T, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry outlived its record.
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", c.schema.Name, keys[i], err)
		}
		out = append(out, record)
	}

	return out, nil
}

// DeleteAllByIndex deletes every record matching the index entry and reports
// how many records were removed. Each record is deleted atomically on its own.
func (c *RedisCollection[T]) DeleteAllByIndex(ctx context.Context, field, value string) (int, error) {
	keys, err := c.redis.SMembers(ctx, c.indexKey(field, value)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count := 0
	for _, key := range keys {
		deleted, err := c.delete(ctx, key)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}

	return count, nil
}

// NextID returns the next value of the collection's id sequence.
func (c *RedisCollection[T]) NextID(ctx context.Context) (int64, error) {
	id, err := c.redis.Incr(ctx, c.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return id, nil
}

func (c *RedisCollection[T]) loadIndexes(ctx context.Context, tx *redis.Tx, rk string) ([]Index, error) {
	data, err := tx.Get(ctx, rk).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return c.schema.indexes(record), nil
}

func staleIndexes(prev, next []Index) []Index {
	if len(prev) == 0 {
		return nil
	}

	keep := make(map[[2]string]struct{}, len(next))
	for _, idx := range next {
		keep[[2]string{idx.Field, idx.Value}] = struct{}{}
	}

	var stale []Index
	for _, idx := range prev {
		if _, ok := keep[[2]string{idx.Field, idx.Value}]; !ok {
			stale = append(stale, idx)
		}
	}
	return stale
}
