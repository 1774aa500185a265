package authkit

import (
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/internal/limiters"
	"github.com/MrEthical07/authkit/internal/rate"
	"github.com/MrEthical07/authkit/jwt"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/refresh"
	"github.com/MrEthical07/authkit/reset"
	"github.com/MrEthical07/authkit/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. A Builder is single-use: the second call to
// Build fails.
//
// Storage comes from exactly one of WithRedis, WithPostgres or
// WithCollections. Rate limiting is enabled whenever a Redis client is
// present, even when records live elsewhere.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *sql.DB

	users         store.Collection[User]
	refreshTokens store.Collection[refresh.Token]
	resetTokens   store.Collection[reset.Token]

	hasher    Hasher
	mailer    Mailer
	auditSink AuditSink
	logger    zerolog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores records in Redis and enables rate limiting.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres stores records in db. The schema must already be migrated
// with store.Migrate.
func (b *Builder) WithPostgres(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithCollections injects ready-made collections, overriding WithRedis and
// WithPostgres for record storage.
func (b *Builder) WithCollections(users store.Collection[User], refreshTokens store.Collection[refresh.Token], resetTokens store.Collection[reset.Token]) *Builder {
	b.users = users
	b.refreshTokens = refreshTokens
	b.resetTokens = resetTokens
	return b
}

// WithHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithHasher(h Hasher) *Builder {
	b.hasher = h
	return b
}

// WithMailer sets the reset link delivery. Required when password reset is
// enabled.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for every time-dependent decision. Intended
// for tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PasswordReset.Enabled && b.mailer == nil {
		return nil, errors.New("password reset requires a mailer")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	users, refreshTokens, resetTokens, err := b.collections(cfg)
	if err != nil {
		return nil, err
	}

	generate := internal.OpaqueGenerator(opaqueFormat(cfg.Tokens.Format))

	refreshManager, err := refresh.NewManager(refreshTokens, refresh.Config{
		TTL:      cfg.Refresh.TTL,
		Generate: generate,
		Clock:    clock,
	})
	if err != nil {
		return nil, err
	}

	resetManager, err := reset.NewManager(resetTokens, reset.Config{
		TTL:      cfg.PasswordReset.TTL,
		Generate: generate,
		Clock:    clock,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		Clock:         clock,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		users:      users,
		refresh:    refreshManager,
		resets:     resetManager,
		jwtManager: jm,
		hasher:     hasher,
		mailer:     b.mailer,
		logger:     b.logger,
		clock:      clock,
		metrics:    NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:                  cfg.Store.RedisPrefix,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
		engine.accountLimiter = limiters.NewAccountCreationLimiter(b.redis, limiters.AccountConfig{
			Prefix:                   cfg.Store.RedisPrefix,
			EnableIdentifierThrottle: cfg.Account.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.Account.EnableIPThrottle,
			MaxAttempts:              cfg.Account.MaxAttempts,
			Cooldown:                 cfg.Account.Cooldown,
		})
		if cfg.PasswordReset.Enabled {
			engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
				Prefix:                   cfg.Store.RedisPrefix,
				EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
				EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
				MaxAttempts:              cfg.PasswordReset.MaxAttempts,
				Cooldown:                 cfg.PasswordReset.Cooldown,
			})
		}
	}

	b.built = true

	return engine, nil
}

func (b *Builder) collections(cfg Config) (store.Collection[User], store.Collection[refresh.Token], store.Collection[reset.Token], error) {
	if b.users != nil || b.refreshTokens != nil || b.resetTokens != nil {
		if b.users == nil || b.refreshTokens == nil || b.resetTokens == nil {
			return nil, nil, nil, errors.New("WithCollections requires all three collections")
		}
		return b.users, b.refreshTokens, b.resetTokens, nil
	}

	switch {
	case b.db != nil:
		users, err := store.NewPostgresCollection(b.db, UserSchema())
		if err != nil {
			return nil, nil, nil, err
		}
		refreshTokens, err := store.NewPostgresCollection(b.db, refresh.Schema())
		if err != nil {
			return nil, nil, nil, err
		}
		resetTokens, err := store.NewPostgresCollection(b.db, reset.Schema())
		if err != nil {
			return nil, nil, nil, err
		}
		return users, refreshTokens, resetTokens, nil
	case b.redis != nil:
		prefix := cfg.Store.RedisPrefix
		users, err := store.NewRedisCollection(b.redis, prefix, UserSchema())
		if err != nil {
			return nil, nil, nil, err
		}
		refreshTokens, err := store.NewRedisCollection(b.redis, prefix, refresh.Schema())
		if err != nil {
			return nil, nil, nil, err
		}
		resetTokens, err := store.NewRedisCollection(b.redis, prefix, reset.Schema())
		if err != nil {
			return nil, nil, nil, err
		}
		return users, refreshTokens, resetTokens, nil
	default:
		return nil, nil, nil, errors.New("storage required: use WithRedis, WithPostgres or WithCollections")
	}
}

func newHasher(cfg PasswordConfig) (Hasher, error) {
	if cfg.Algorithm == PasswordBcrypt {
		return password.NewBcrypt(cfg.BcryptCost)
	}
	return password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxPasswordBytes,
	})
}

func opaqueFormat(f TokenFormat) internal.OpaqueFormat {
	if f == TokenUUID {
		return internal.OpaqueUUID
	}
	return internal.OpaqueRandom
}
