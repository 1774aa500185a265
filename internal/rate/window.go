package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hit increments the fixed-window counter at key and returns the new count.
// The window starts at the first hit: EXPIRE is only set when the counter is
// created, so later hits never extend it.
func Hit(ctx context.Context, client redis.UniversalClient, key string, window time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Peek returns the current count at key without changing it. A missing key
// counts as zero.
func Peek(ctx context.Context, client redis.UniversalClient, key string) (int64, error) {
	count, err := client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return max(count, 0), nil
}

// Key joins a prefix, a namespace and the tenant-scoped subject into one
// Redis key. An empty tenant is the default tenant "0".
func Key(prefix, namespace, tenantID, subject string) string {
	if tenantID == "" {
		tenantID = "0"
	}
	return prefix + ":" + namespace + ":" + tenantID + ":" + subject
}
