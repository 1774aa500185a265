package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authkit/internal/config"
	"github.com/MrEthical07/authkit/mail"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.StartupTimeout = 300 * time.Millisecond
	return cfg
}

func TestMailerSelection(t *testing.T) {
	a := &App{cfg: testConfig(t), logger: zerolog.Nop()}

	m, err := a.mailer()
	require.NoError(t, err)
	assert.IsType(t, &mail.LogSender{}, m)

	a.cfg.MailTransport = "nats"
	_, err = a.mailer()
	assert.Error(t, err, "nats transport without a connection")

	a.cfg.MailTransport = "smtp"
	_, err = a.mailer()
	assert.Error(t, err)
}

func TestRetryGivesUp(t *testing.T) {
	a := &App{cfg: testConfig(t), logger: zerolog.Nop()}

	calls := 0
	err := a.retry(context.Background(), "flaky", func() error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect flaky")
	assert.Greater(t, calls, 1)
}

func TestRetryRecovers(t *testing.T) {
	a := &App{cfg: testConfig(t), logger: zerolog.Nop()}

	calls := 0
	err := a.retry(context.Background(), "flaky", func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNewWithRedisOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.engine)
	assert.NotNil(t, a.echo)
	assert.Nil(t, a.db)
	assert.Nil(t, a.natsConn)
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
