package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAccountRateLimited is returned when registration attempts exceed the
// budget for an email or an IP.
var ErrAccountRateLimited = errors.New("account creation rate limited")

// AccountConfig configures [AccountCreationLimiter].
type AccountConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// AccountCreationLimiter counts registration attempts per email and per IP.
// Every attempt counts, successful or not.
type AccountCreationLimiter struct {
	w      window
	config AccountConfig
}

func NewAccountCreationLimiter(redisClient redis.UniversalClient, cfg AccountConfig) *AccountCreationLimiter {
	return &AccountCreationLimiter{
		w:      window{redis: redisClient, prefix: cfg.Prefix, maxAttempts: cfg.MaxAttempts, length: cfg.Cooldown},
		config: cfg,
	}
}

// Enforce counts one attempt. A nil limiter allows everything.
func (l *AccountCreationLimiter) Enforce(ctx context.Context, tenantID, email, ip string) error {
	if l == nil {
		return nil
	}

	if l.config.EnableIdentifierThrottle {
		if err := l.hit(ctx, "register", tenantID, email); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.hit(ctx, "register-ip", tenantID, ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *AccountCreationLimiter) hit(ctx context.Context, namespace, tenantID, subject string) error {
	ok, err := l.w.allow(ctx, namespace, tenantID, subject)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountRateLimited
	}
	return nil
}
