package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrResetRateLimited is returned when reset requests or confirmations
// exceed their budget.
var ErrResetRateLimited = errors.New("password reset rate limited")

// PasswordResetConfig configures [PasswordResetLimiter].
type PasswordResetConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// PasswordResetLimiter throttles both halves of the reset flow. Requests are
// keyed by email, confirmations by token fingerprint, and both by IP.
type PasswordResetLimiter struct {
	w      window
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		w:      window{redis: redisClient, prefix: cfg.Prefix, maxAttempts: cfg.MaxAttempts, length: cfg.Cooldown},
		config: cfg,
	}
}

// CheckRequest counts one reset request for email.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, tenantID, email, ip string) error {
	return l.check(ctx, "reset-req", tenantID, email, ip)
}

// CheckConfirm counts one confirmation attempt. tokenRef must be a
// fingerprint of the token, not the token.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, tenantID, tokenRef, ip string) error {
	return l.check(ctx, "reset-confirm", tenantID, tokenRef, ip)
}

// Cooldown reports the window length.
func (l *PasswordResetLimiter) Cooldown() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Cooldown
}

func (l *PasswordResetLimiter) check(ctx context.Context, namespace, tenantID, subject, ip string) error {
	if l == nil {
		return nil
	}

	if l.config.EnableIdentifierThrottle {
		ok, err := l.w.allow(ctx, namespace, tenantID, subject)
		if err != nil {
			return err
		}
		if !ok {
			return ErrResetRateLimited
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		ok, err := l.w.allow(ctx, namespace+"-ip", tenantID, ip)
		if err != nil {
			return err
		}
		if !ok {
			return ErrResetRateLimited
		}
	}
	return nil
}
