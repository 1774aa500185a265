package rate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func loginConfig() Config {
	return Config{
		Prefix:                  "t",
		EnableIPThrottle:        true,
		EnableRefreshThrottle:   true,
		MaxLoginAttempts:        3,
		LoginCooldownDuration:   time.Minute,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	}
}

func TestLoginBudget(t *testing.T) {
	l, mr := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "0", "ada@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "0", "ada@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("IncrementLogin failed: %v", err)
		}
	}

	if err := l.CheckLogin(ctx, "0", "ada@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "0", "grace@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected the IP budget to apply across emails, got %v", err)
	}
	if err := l.CheckLogin(ctx, "other", "ada@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("tenants must not share budgets: %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "0", "ada@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestFixedWindowDoesNotSlide(t *testing.T) {
	l, mr := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "0", "ada@example.com", ""); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}
	mr.FastForward(40 * time.Second)
	if err := l.IncrementLogin(ctx, "0", "ada@example.com", ""); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}

	if ttl := mr.TTL("t:login:0:ada@example.com"); ttl > 20*time.Second {
		t.Fatalf("later hits must not extend the window, ttl=%v", ttl)
	}
}

func TestResetLogin(t *testing.T) {
	l, _ := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = l.IncrementLogin(ctx, "0", "ada@example.com", "10.0.0.1")
	}
	if n, _ := l.LoginAttempts(ctx, "0", "ada@example.com"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}

	if err := l.ResetLogin(ctx, "0", "ada@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "0", "ada@example.com"); n != 0 {
		t.Fatalf("expected 0 attempts, got %d", n)
	}
}

func TestRefreshBudgetUsesFingerprint(t *testing.T) {
	l, mr := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "0", "secret-refresh-token"); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "0", "secret-refresh-token"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	for _, key := range mr.Keys() {
		if strings.Contains(key, "secret-refresh-token") {
			t.Fatalf("raw token stored in key %q", key)
		}
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	cfg := loginConfig()
	cfg.EnableRefreshThrottle = false
	l, mr := newTestLimiter(t, cfg)

	for i := 0; i < 10; i++ {
		if err := l.CheckRefresh(context.Background(), "0", "tok"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatal("disabled throttle must not write counters")
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	l, mr := newTestLimiter(t, loginConfig())
	mr.Close()

	if err := l.IncrementLogin(context.Background(), "0", "ada@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
