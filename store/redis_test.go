package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type account struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Team  string `json:"team"`
}

func accountSchema() Schema[account] {
	return Schema[account]{
		Name: "accounts",
		Key:  func(a account) string { return strconv.FormatInt(a.ID, 10) },
		Indexes: func(a account) []Index {
			idx := []Index{{Field: "email", Value: a.Email, Unique: true}}
			if a.Team != "" {
				idx = append(idx, Index{Field: "team", Value: a.Team})
			}
			return idx
		},
	}
}

func newTestRedisCollection(t *testing.T) (*miniredis.Miniredis, *RedisCollection[account]) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	coll, err := NewRedisCollection(rdb, "t", accountSchema())
	if err != nil {
		t.Fatalf("NewRedisCollection failed: %v", err)
	}
	return mr, coll
}

func TestRedisPutGet(t *testing.T) {
	_, coll := newTestRedisCollection(t)
	ctx := context.Background()

	if err := coll.Put(ctx, account{ID: 1, Email: "a@x.com", Team: "red"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := coll.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Email != "a@x.com" || got.Team != "red" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := coll.Get(ctx, "2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisUniqueIndexRejectsOtherOwner(t *testing.T) {
	_, coll := newTestRedisCollection(t)
	ctx := context.Background()

	if err := coll.Put(ctx, account{ID: 1, Email: "a@x.com"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := coll.Put(ctx, account{ID: 2, Email: "a@x.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := coll.Get(ctx, "2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected record must not be stored, got %v", err)
	}

	// Re-putting the owner with the same unique value is an update, not a clash.
	if err := coll.Put(ctx, account{ID: 1, Email: "a@x.com", Team: "blue"}); err != nil {
		t.Fatalf("expected self update to succeed, got %v", err)
	}
}

func TestRedisPutMovesIndexes(t *testing.T) {
	_, coll := newTestRedisCollection(t)
	ctx := context.Background()

	if err := coll.Put(ctx, account{ID: 1, Email: "old@x.com", Team: "red"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := coll.Put(ctx, account{ID: 1, Email: "new@x.com", Team: "red"}); err != nil {
		t.Fatalf("Put update failed: %v", err)
	}

	old, err := coll.FindByIndex(ctx, "email", "old@x.com")
	if err != nil {
		t.Fatalf("FindByIndex failed: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected stale email index to be removed, got %+v", old)
	}

	// The old address is free for another record now.
	if err := coll.Put(ctx, account{ID: 2, Email: "old@x.com"}); err != nil {
		t.Fatalf("expected released email to be reusable, got %v", err)
	}
}

func TestRedisFindAndDeleteAllByIndex(t *testing.T) {
	mr, coll := newTestRedisCollection(t)
	ctx := context.Background()

	for i, team := range []string{"red", "red", "blue", "red"} {
		id := int64(i + 1)
		if err := coll.Put(ctx, account{ID: id, Email: "u" + strconv.FormatInt(id, 10) + "@x.com", Team: team}); err != nil {
			t.Fatalf("Put %d failed: %v", id, err)
		}
	}

	red, err := coll.FindByIndex(ctx, "team", "red")
	if err != nil {
		t.Fatalf("FindByIndex failed: %v", err)
	}
	if len(red) != 3 {
		t.Fatalf("expected 3 red accounts, got %d", len(red))
	}
	if red[0].ID != 1 || red[1].ID != 2 || red[2].ID != 4 {
		t.Fatalf("expected key order 1,2,4, got %+v", red)
	}

	n, err := coll.DeleteAllByIndex(ctx, "team", "red")
	if err != nil {
		t.Fatalf("DeleteAllByIndex failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deletions, got %d", n)
	}
	if mr.Exists("t:accounts:i:team:red") {
		t.Fatal("expected index set to be emptied")
	}
	if _, err := coll.Get(ctx, "3"); err != nil {
		t.Fatalf("expected unrelated record to survive, got %v", err)
	}
}

func TestRedisDeleteIsIdempotent(t *testing.T) {
	_, coll := newTestRedisCollection(t)
	ctx := context.Background()

	if err := coll.Put(ctx, account{ID: 1, Email: "a@x.com"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := coll.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := coll.Delete(ctx, "1"); err != nil {
		t.Fatalf("second Delete must be a no-op, got %v", err)
	}
	if err := coll.Put(ctx, account{ID: 9, Email: "a@x.com"}); err != nil {
		t.Fatalf("expected unique value released by delete, got %v", err)
	}
}

func TestRedisFindSkipsDanglingIndexEntries(t *testing.T) {
	mr, coll := newTestRedisCollection(t)
	ctx := context.Background()

	if err := coll.Put(ctx, account{ID: 1, Email: "a@x.com", Team: "red"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := mr.SAdd("t:accounts:i:team:red", "404"); err != nil {
		t.Fatalf("seed dangling entry failed: %v", err)
	}

	got, err := coll.FindByIndex(ctx, "team", "red")
	if err != nil {
		t.Fatalf("FindByIndex failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only live record, got %+v", got)
	}
}

func TestRedisNextIDMonotonic(t *testing.T) {
	_, coll := newTestRedisCollection(t)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := coll.NextID(ctx)
			if err != nil {
				t.Errorf("NextID failed: %v", err)
				return
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 20 {
		t.Fatalf("expected 20 distinct ids, got %d", len(seen))
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr, coll := newTestRedisCollection(t)
	mr.Close()

	if _, err := coll.Get(context.Background(), "1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
