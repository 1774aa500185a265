package limiters

import (
	"context"
	"time"

	"github.com/MrEthical07/authkit/internal/rate"
	"github.com/redis/go-redis/v9"
)

// window is one fixed-window budget shared by a family of keys.
type window struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	length      time.Duration
}

// allow counts a hit on key and reports whether it is still within budget.
func (w window) allow(ctx context.Context, namespace, tenantID, subject string) (bool, error) {
	count, err := rate.Hit(ctx, w.redis, rate.Key(w.prefix, namespace, tenantID, subject), w.length)
	if err != nil {
		return false, err
	}
	return count <= int64(w.maxAttempts), nil
}
