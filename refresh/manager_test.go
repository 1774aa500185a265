package refresh

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authkit/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialTokens() func() (string, error) {
	var n atomic.Int64
	return func() (string, error) {
		return "rt-" + strconv.FormatInt(n.Add(1), 10), nil
	}
}

func newTestManager(t *testing.T) (*Manager, *testClock, store.Collection[Token]) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	coll, err := store.NewRedisCollection(rdb, "t", Schema())
	if err != nil {
		t.Fatalf("NewRedisCollection failed: %v", err)
	}

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m, err := NewManager(coll, Config{
		TTL:      24 * time.Hour,
		Generate: sequentialTokens(),
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, clock, coll
}

func TestNewManagerValidation(t *testing.T) {
	gen := sequentialTokens()
	if _, err := NewManager(nil, Config{TTL: time.Hour, Generate: gen}); err == nil {
		t.Fatal("expected error for nil collection")
	}

	_, _, coll := newTestManager(t)
	if _, err := NewManager(coll, Config{TTL: 0, Generate: gen}); err == nil {
		t.Fatal("expected error for zero TTL")
	}
	if _, err := NewManager(coll, Config{TTL: time.Hour}); err == nil {
		t.Fatal("expected error for missing generator")
	}
}

func TestIssueSetsExpiryAndOwner(t *testing.T) {
	m, clock, _ := newTestManager(t)

	tok, err := m.Issue(context.Background(), 7)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if tok.UserID != 7 || tok.Revoked || tok.ID <= 0 {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if want := clock.Now().Add(24 * time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, tok.ExpiresAt)
	}
	if !m.IsUsable(tok) {
		t.Fatal("fresh token should be usable")
	}
}

func TestIssueRotatesPriorTokens(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Issue(ctx, 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := m.Issue(ctx, 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	old, ok, err := m.Lookup(ctx, first.Token)
	if err != nil || !ok {
		t.Fatalf("Lookup of rotated token failed: ok=%v err=%v", ok, err)
	}
	if !old.Revoked || m.IsUsable(old) {
		t.Fatalf("rotated token must be revoked, got %+v", old)
	}
	// Revoked by flag alone; it has not expired.
	if !old.ExpiresAt.After(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("rotated token should still be inside its expiry window")
	}

	cur, ok, err := m.Lookup(ctx, second.Token)
	if err != nil || !ok || !m.IsUsable(cur) {
		t.Fatalf("replacement token should be usable: %+v ok=%v err=%v", cur, ok, err)
	}
}

func TestAtMostOneUsableTokenPerUser(t *testing.T) {
	m, clock, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		user := int64(i%3 + 1)
		if _, err := m.Issue(ctx, user); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		clock.Advance(time.Minute)

		for u := int64(1); u <= 3; u++ {
			active, err := m.Active(ctx, u)
			if err != nil {
				t.Fatalf("Active failed: %v", err)
			}
			if len(active) > 1 {
				t.Fatalf("user %d has %d usable tokens after %d issues", u, len(active), i+1)
			}
		}
	}
}

func TestIssueDoesNotTouchOtherUsers(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Issue(ctx, 1)
	if _, err := m.Issue(ctx, 2); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, ok, err := m.Lookup(ctx, a.Token)
	if err != nil || !ok || !m.IsUsable(got) {
		t.Fatalf("other user's issue must not revoke token: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestIsUsableExpiry(t *testing.T) {
	m, clock, _ := newTestManager(t)

	tok, err := m.Issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(24*time.Hour - time.Second)
	if !m.IsUsable(tok) {
		t.Fatal("token should be usable just before expiry")
	}
	clock.Advance(time.Second)
	if m.IsUsable(tok) {
		t.Fatal("token must not be usable at its expiry instant")
	}
}

func TestLookupMissing(t *testing.T) {
	m, _, _ := newTestManager(t)

	for _, token := range []string{"", "nope"} {
		_, ok, err := m.Lookup(context.Background(), token)
		if err != nil || ok {
			t.Fatalf("expected not found for %q, got ok=%v err=%v", token, ok, err)
		}
	}
}

func TestRawTokenNeverStored(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	coll, err := store.NewRedisCollection(rdb, "t", Schema())
	if err != nil {
		t.Fatalf("NewRedisCollection failed: %v", err)
	}
	m, err := NewManager(coll, Config{TTL: time.Hour, Generate: sequentialTokens()})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx := context.Background()
	tok, err := m.Issue(ctx, 11)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if tok.Token == "" || tok.Hash != HashToken(tok.Token) {
		t.Fatalf("issued token must carry raw value and hash: %+v", tok)
	}

	for _, key := range mr.Keys() {
		if strings.Contains(key, tok.Token) {
			t.Fatalf("raw token leaked into key %q", key)
		}
		// index keys are sets; only record keys hold a string value
		if v, err := mr.Get(key); err == nil && strings.Contains(v, tok.Token) {
			t.Fatalf("raw token leaked into value of %q", key)
		}
	}

	stored, err := coll.Get(ctx, tok.Hash)
	if err != nil {
		t.Fatalf("record not keyed by hash: %v", err)
	}
	if stored.Token != "" {
		t.Fatalf("stored record must not carry the raw token, got %q", stored.Token)
	}

	got, ok, err := m.Lookup(ctx, tok.Token)
	if err != nil || !ok || got.ID != tok.ID {
		t.Fatalf("Lookup by raw token failed: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestRevokeByTokenIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	tok, _ := m.Issue(ctx, 3)
	for i := 0; i < 2; i++ {
		if err := m.RevokeByToken(ctx, tok.Token); err != nil {
			t.Fatalf("RevokeByToken #%d failed: %v", i+1, err)
		}
	}
	if err := m.RevokeByToken(ctx, "unknown"); err != nil {
		t.Fatalf("unknown token must be a no-op, got %v", err)
	}

	got, _, _ := m.Lookup(ctx, tok.Token)
	if !got.Revoked {
		t.Fatal("expected token to be revoked")
	}
}

func TestRevokeAllKeepsRecords(t *testing.T) {
	m, _, coll := newTestManager(t)
	ctx := context.Background()

	tok, _ := m.Issue(ctx, 4)
	n, err := m.RevokeAll(ctx, 4)
	if err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 revoked, got %d", n)
	}

	n, err = m.RevokeAll(ctx, 4)
	if err != nil || n != 0 {
		t.Fatalf("second RevokeAll should change nothing, got n=%d err=%v", n, err)
	}

	if _, err := coll.Get(ctx, tok.Hash); err != nil {
		t.Fatalf("revoked record should still exist, got %v", err)
	}
}

func TestPurgeAllDeletes(t *testing.T) {
	m, _, coll := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Issue(ctx, 5)
	b, _ := m.Issue(ctx, 5)

	n, err := m.PurgeAll(ctx, 5)
	if err != nil {
		t.Fatalf("PurgeAll failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged, got %d", n)
	}
	for _, tok := range []Token{a, b} {
		if _, err := coll.Get(ctx, tok.Hash); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected %s deleted, got %v", tok.Token, err)
		}
	}
}

func TestIssuePropagatesGeneratorError(t *testing.T) {
	_, _, coll := newTestManager(t)
	boom := errors.New("entropy exhausted")

	m, err := NewManager(coll, Config{
		TTL:      time.Hour,
		Generate: func() (string, error) { return "", boom },
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Issue(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
}
