package authkit

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authkit/password"
)

// Config is the complete engine configuration. Build it with
// [DefaultConfig], override fields, then hand it to [Builder.WithConfig].
// The Engine keeps its own copy; later changes to the caller's value have
// no effect.
type Config struct {
	JWT           JWTConfig
	Refresh       RefreshConfig
	PasswordReset PasswordResetConfig
	Password      PasswordConfig
	Tokens        TokenConfig
	Account       AccountConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Store         StoreConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access token minting and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
}

/*
====================================
REFRESH / RESET CONFIG
====================================
*/

// RefreshConfig configures rotating refresh tokens.
type RefreshConfig struct {
	TTL time.Duration
}

// PasswordResetConfig configures the two-step reset flow.
type PasswordResetConfig struct {
	Enabled                  bool
	TTL                      time.Duration
	MaxAttempts              int
	Cooldown                 time.Duration
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	// RevokeRefreshTokens revokes every refresh token of the user once a
	// reset completes.
	RevokeRefreshTokens bool
}

/*
====================================
PASSWORD / TOKEN CONFIG
====================================
*/

// PasswordAlgorithm selects the default [Hasher].
type PasswordAlgorithm string

const (
	PasswordArgon2id PasswordAlgorithm = "argon2id"
	PasswordBcrypt   PasswordAlgorithm = "bcrypt"
)

// PasswordConfig parameterizes the default hasher. It is ignored when a
// hasher is supplied through [Builder.WithHasher].
type PasswordConfig struct {
	Algorithm        PasswordAlgorithm
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	BcryptCost       int
}

// TokenFormat selects how opaque refresh and reset tokens are generated.
type TokenFormat int

const (
	// TokenRandom is 32 random bytes, base64url without padding.
	TokenRandom TokenFormat = iota
	// TokenUUID is a random version 4 UUID.
	TokenUUID
)

// TokenConfig configures opaque token generation.
type TokenConfig struct {
	Format TokenFormat
}

/*
====================================
ACCOUNT / SECURITY CONFIG
====================================
*/

// AccountConfig configures registration.
type AccountConfig struct {
	RegistrationEnabled      bool
	DefaultRole              Role
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// SecurityConfig holds the login and refresh throttling budgets. Throttling
// is only active when the engine has a Redis client.
type SecurityConfig struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StoreConfig configures the built-in collections.
type StoreConfig struct {
	// RedisPrefix namespaces every key written by the Redis collections and
	// limiters.
	RedisPrefix string
}

// DefaultConfig returns a configuration suitable for production once
// signing keys are set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			MaxFutureIAT:  10 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL: 7 * 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  true,
			TTL:                      24 * time.Hour,
			MaxAttempts:              5,
			Cooldown:                 15 * time.Minute,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			RevokeRefreshTokens:      true,
		},
		Password: PasswordConfig{
			Algorithm:        PasswordArgon2id,
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			BcryptCost:       12,
		},
		Tokens: TokenConfig{
			Format: TokenRandom,
		},
		Account: AccountConfig{
			RegistrationEnabled:      true,
			DefaultRole:              RoleUser,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			MaxAttempts:              5,
			Cooldown:                 15 * time.Minute,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        true,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Store: StoreConfig{
			RedisPrefix: "ak",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be in [0, 2m]")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be in [0, 24h]")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}

	// Password
	switch c.Password.Algorithm {
	case PasswordArgon2id:
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 || c.Password.Parallelism < 1 {
			return errors.New("Password Time and Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
			return errors.New("Password SaltLength and KeyLength must be >= 16")
		}
	case PasswordBcrypt:
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be in [10, 31]")
		}
	default:
		return errors.New("unsupported Password Algorithm")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Tokens
	if c.Tokens.Format != TokenRandom && c.Tokens.Format != TokenUUID {
		return errors.New("Tokens Format is invalid")
	}

	// Password reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.TTL <= 0 {
			return errors.New("PasswordReset TTL must be > 0")
		}
		if c.PasswordReset.MaxAttempts <= 0 || c.PasswordReset.Cooldown <= 0 {
			return errors.New("PasswordReset MaxAttempts and Cooldown must be > 0")
		}
	}

	// Account
	if !c.Account.DefaultRole.Valid() {
		return errors.New("Account DefaultRole must be USER or ADMIN")
	}
	if c.Account.RegistrationEnabled && (c.Account.MaxAttempts <= 0 || c.Account.Cooldown <= 0) {
		return errors.New("Account MaxAttempts and Cooldown must be > 0")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 || c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security login budget must be > 0")
	}
	if c.Security.EnableRefreshThrottle && (c.Security.MaxRefreshAttempts <= 0 || c.Security.RefreshCooldownDuration <= 0) {
		return errors.New("Security refresh budget must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	return nil
}
