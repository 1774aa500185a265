// Package app wires the authkit server process: storage, messaging, the
// engine and the HTTP and NATS front ends.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/httpapi"
	"github.com/MrEthical07/authkit/internal/config"
	"github.com/MrEthical07/authkit/mail"
	otelexport "github.com/MrEthical07/authkit/metrics/export/otel"
	"github.com/MrEthical07/authkit/natsapi"
	"github.com/MrEthical07/authkit/store"
)

type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	redis    *redis.Client
	db       *sql.DB
	natsConn *nats.Conn
	natsSub  *nats.Subscription
	otel     *otelexport.Exporter

	engine *authkit.Engine
	echo   *echo.Echo
}

// New connects to every backing service and builds the engine. Connections
// are retried with exponential backoff until cfg.StartupTimeout elapses.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	if _, err := cfg.TrustedProxyNets(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx, engineCfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, engineCfg authkit.Config) error {
	cfg, logger := a.cfg, a.logger

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := a.retry(ctx, "redis", func() error {
		return a.redis.Ping(ctx).Err()
	}); err != nil {
		return err
	}

	builder := authkit.New().
		WithConfig(engineCfg).
		WithRedis(a.redis).
		WithLogger(logger.With().Str("component", "engine").Logger())

	if cfg.DatabaseURL != "" {
		if err := a.retry(ctx, "postgres", func() error {
			db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			a.db = db
			return nil
		}); err != nil {
			return err
		}
		if err := store.Migrate(ctx, a.db); err != nil {
			return err
		}
		builder.WithPostgres(a.db)
	}

	if cfg.NATSURL != "" {
		if err := a.retry(ctx, "nats", func() error {
			nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
			if err != nil {
				return err
			}
			a.natsConn = nc
			return nil
		}); err != nil {
			return err
		}
	}

	mailer, err := a.mailer()
	if err != nil {
		return err
	}
	builder.WithMailer(mailer)

	if cfg.AuditEnabled {
		builder.WithAuditSink(authkit.NewZerologSink(logger.With().Str("component", "audit").Logger()))
	}

	a.engine, err = builder.Build()
	if err != nil {
		return err
	}

	// Processes that install a global MeterProvider receive engine metrics
	// through it; the default provider discards them.
	a.otel, err = otelexport.NewExporter(otel.GetMeterProvider().Meter("github.com/MrEthical07/authkit"), a.engine)
	if err != nil {
		return err
	}

	if a.natsConn != nil {
		verify := natsapi.NewVerifyHandler(a.engine, logger.With().Str("component", "nats").Logger())
		a.natsSub, err = verify.Subscribe(a.natsConn, cfg.NATSVerifySubject, cfg.AppName)
		if err != nil {
			return err
		}
	}

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		return err
	}
	a.echo = echo.New()
	httpapi.NewRouter(a.engine, logger.With().Str("component", "http").Logger(),
		httpapi.WithTrustedProxies(proxies...)).Setup(a.echo)
	return nil
}

func (a *App) mailer() (authkit.Mailer, error) {
	switch a.cfg.MailTransport {
	case "log":
		return mail.NewLogSender(a.logger.With().Str("component", "mail").Logger(), a.cfg.BaseURL), nil
	case "nats":
		if a.natsConn == nil {
			return nil, errors.New("app: nats mail transport requires NATS_URL")
		}
		return mail.NewNATSSender(a.natsConn, a.cfg.NATSMailSubject, a.cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("app: unknown mail transport %q", a.cfg.MailTransport)
	}
}

func (a *App) retry(ctx context.Context, name string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = a.cfg.StartupTimeout

	notify := func(err error, wait time.Duration) {
		a.logger.Warn().Err(err).Str("service", name).Dur("retry_in", wait).Msg("connection failed")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return fmt.Errorf("app: connect %s: %w", name, err)
	}
	a.logger.Info().Str("service", name).Msg("connected")
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.Addr()).Msg("http listening")
		errCh <- a.echo.Start(a.cfg.Addr())
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases every connection. It is safe on a partially built App.
func (a *App) Close() {
	if a.natsSub != nil {
		_ = a.natsSub.Unsubscribe()
	}
	if a.otel != nil {
		_ = a.otel.Close()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
