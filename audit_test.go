package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func withAudit(sink AuditSink, buffer int, dropIfFull bool) func(*Config, *Builder) {
	return func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = buffer
		cfg.Audit.DropIfFull = dropIfFull
		b.WithAuditSink(sink)
	}
}

func nextEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Type == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", eventType)
		}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, withAudit(sink, 64, false))
	ctx := WithClientIP(context.Background(), "198.51.100.4")
	env.register(t, "ada@example.com", "correct-horse-battery")

	if _, err := env.engine.Login(ctx, "ada@example.com", "wrong-password-123"); err == nil {
		t.Fatal("expected login failure")
	}
	ev := nextEvent(t, sink, auditEventLogin)
	if ev.Success || ev.Error != string(auditErrBadCredentials) {
		t.Fatalf("unexpected failure event: %+v", ev)
	}
	if ev.IP != "198.51.100.4" || ev.TenantID != "0" {
		t.Fatalf("expected ip and default tenant, got %+v", ev)
	}

	if _, err := env.engine.Login(ctx, "ada@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	ev = nextEvent(t, sink, auditEventLogin)
	if !ev.Success || ev.UserID == "" {
		t.Fatalf("unexpected success event: %+v", ev)
	}
}

func TestAuditNeverCarriesRawTokens(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, withAudit(sink, 64, false))
	ctx := context.Background()
	sess := env.register(t, "ada@example.com", "correct-horse-battery")

	if _, err := env.engine.Refresh(ctx, sess.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Fatal("expected replay to fail")
	}

	ev := nextEvent(t, sink, auditEventRefreshReuse)
	if ev.TokenRef == "" || strings.Contains(ev.TokenRef, sess.RefreshToken) {
		t.Fatalf("expected a fingerprint, got %q", ev.TokenRef)
	}
}

func TestAuditDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	env := newTestEnv(t, withAudit(sink, 1, true))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = env.engine.Logout(ctx, "token")
	}
	if env.engine.AuditDropped() == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}
	close(sink.gate)
}

func TestAuditCloseFlushesQueuedEvents(t *testing.T) {
	sink := &countingSink{}
	env := newTestEnv(t, withAudit(sink, 128, false))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_ = env.engine.Logout(ctx, "token")
	}
	env.engine.Close()

	if got := sink.count.Load(); got != 20 {
		t.Fatalf("expected 20 delivered events, got %d", got)
	}
	env.engine.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{Type: "login", Success: true, UserID: "7"})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON line %q: %v", buf.String(), err)
	}
	if decoded["event_type"] != "login" || decoded["user_id"] != "7" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))

	sink.Emit(context.Background(), AuditEvent{
		Type:     "refresh",
		Success:  false,
		Error:    "invalid_token",
		TokenRef: "abc",
		Metadata: map[string]string{"reason": "expired"},
	})

	line := buf.String()
	for _, want := range []string{`"level":"warn"`, `"event_type":"refresh"`, `"token_ref":"abc"`, `"md_reason":"expired"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}
