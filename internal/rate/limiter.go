package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/redis/go-redis/v9"
)

// Config holds the login and refresh budgets.
type Config struct {
	Prefix                  string
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter throttles failed logins per email and per IP, and refresh calls per
// presented token.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Limiter writing counters through redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "ak"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckLogin returns ErrRateLimited when the email or the IP has already
// exhausted its failure budget. It does not count the attempt itself.
func (l *Limiter) CheckLogin(ctx context.Context, tenantID, email, ip string) error {
	for _, key := range l.loginKeys(tenantID, email, ip) {
		count, err := Peek(ctx, l.redis, key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records one failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, tenantID, email, ip string) error {
	for _, key := range l.loginKeys(tenantID, email, ip) {
		if _, err := Hit(ctx, l.redis, key, l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the failure counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, tenantID, email, ip string) error {
	if err := l.redis.Del(ctx, l.loginKeys(tenantID, email, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failure count for email.
func (l *Limiter) LoginAttempts(ctx context.Context, tenantID, email string) (int, error) {
	count, err := Peek(ctx, l.redis, Key(l.config.Prefix, "login", tenantID, email))
	return int(count), err
}

// CheckRefresh counts one refresh attempt with token and fails once the
// budget for that token is exceeded. The raw token never reaches Redis.
func (l *Limiter) CheckRefresh(ctx context.Context, tenantID, token string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}

	count, err := Hit(ctx, l.redis, Key(l.config.Prefix, "refresh", tenantID, internal.Fingerprint(token)), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) loginKeys(tenantID, email, ip string) []string {
	keys := []string{Key(l.config.Prefix, "login", tenantID, email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, Key(l.config.Prefix, "login-ip", tenantID, ip))
	}
	return keys
}
