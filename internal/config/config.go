// Package config loads process settings for the authkit binaries from the
// environment and an optional .env file.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/authkit"
)

// Config is the process configuration. Every field maps to one AUTH_*
// variable, except the NATS settings which share the NATS_* namespace with
// sibling services.
type Config struct {
	AppName  string `env:"AUTH_APP_NAME" envDefault:"authkit"`
	AppEnv   string `env:"AUTH_APP_ENV" envDefault:"local"`
	LogLevel string `env:"AUTH_LOG_LEVEL" envDefault:"info"`

	HTTPHost string `env:"AUTH_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort string `env:"AUTH_HTTP_PORT" envDefault:"8081"`
	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For entries are believed. Empty means the peer address is
	// the client address.
	TrustedProxies []string `env:"AUTH_TRUSTED_PROXIES" envSeparator:","`
	// BaseURL is the frontend origin used in password reset links.
	BaseURL string `env:"AUTH_BASE_URL" envDefault:"http://localhost:3000"`

	RedisAddr     string `env:"AUTH_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"AUTH_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTH_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"AUTH_REDIS_PREFIX" envDefault:"ak"`

	// DatabaseURL selects the Postgres store when set. Records live in
	// Redis otherwise.
	DatabaseURL string `env:"AUTH_DATABASE_URL"`

	JWTSigningMethod string        `env:"AUTH_JWT_SIGNING_METHOD" envDefault:"hs256"`
	JWTSecret        string        `env:"AUTH_JWT_SECRET"`
	JWTPrivateKey    string        `env:"AUTH_JWT_PRIVATE_KEY"`
	JWTPublicKey     string        `env:"AUTH_JWT_PUBLIC_KEY"`
	JWTIssuer        string        `env:"AUTH_JWT_ISSUER" envDefault:"authkit"`
	JWTAudience      string        `env:"AUTH_JWT_AUDIENCE"`
	JWTKeyID         string        `env:"AUTH_JWT_KEY_ID"`
	AccessTTL        time.Duration `env:"AUTH_JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL       time.Duration `env:"AUTH_JWT_REFRESH_TTL" envDefault:"168h"`

	RegistrationEnabled  bool          `env:"AUTH_REGISTRATION_ENABLED" envDefault:"true"`
	PasswordResetEnabled bool          `env:"AUTH_PASSWORD_RESET_ENABLED" envDefault:"true"`
	PasswordResetTTL     time.Duration `env:"AUTH_PASSWORD_RESET_TTL" envDefault:"24h"`
	PasswordAlgorithm    string        `env:"AUTH_PASSWORD_ALGORITHM" envDefault:"argon2id"`
	TokenFormat          string        `env:"AUTH_TOKEN_FORMAT" envDefault:"random"`

	MetricsEnabled bool `env:"AUTH_METRICS_ENABLED" envDefault:"true"`
	AuditEnabled   bool `env:"AUTH_AUDIT_ENABLED" envDefault:"false"`

	// MailTransport is "log" or "nats".
	MailTransport string `env:"AUTH_MAIL_TRANSPORT" envDefault:"log"`

	NATSURL           string `env:"NATS_URL"`
	NATSVerifySubject string `env:"NATS_SUBJECT_VERIFY_JWT" envDefault:"auth.verifyJWT"`
	NATSMailSubject   string `env:"NATS_SUBJECT_PASSWORD_RESET_MAIL" envDefault:"mail.password-reset"`

	StartupTimeout time.Duration `env:"AUTH_STARTUP_TIMEOUT" envDefault:"30s"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return c.HTTPHost + ":" + c.HTTPPort
}

// TrustedProxyNets parses TrustedProxies. A bare address is a single-host
// range.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("config: invalid trusted proxy %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid trusted proxy %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// Engine converts c into an engine configuration on top of
// authkit.DefaultConfig.
func (c *Config) Engine() (authkit.Config, error) {
	cfg := authkit.DefaultConfig()

	cfg.JWT.SigningMethod = strings.ToLower(c.JWTSigningMethod)
	switch cfg.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	case "ed25519":
		cfg.JWT.PrivateKey = pemBytes(c.JWTPrivateKey)
		cfg.JWT.PublicKey = pemBytes(c.JWTPublicKey)
	default:
		return authkit.Config{}, fmt.Errorf("config: unknown signing method %q", c.JWTSigningMethod)
	}
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.KeyID = c.JWTKeyID
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.Refresh.TTL = c.RefreshTTL

	cfg.Account.RegistrationEnabled = c.RegistrationEnabled
	cfg.PasswordReset.Enabled = c.PasswordResetEnabled
	cfg.PasswordReset.TTL = c.PasswordResetTTL

	switch strings.ToLower(c.PasswordAlgorithm) {
	case "argon2id":
		cfg.Password.Algorithm = authkit.PasswordArgon2id
	case "bcrypt":
		cfg.Password.Algorithm = authkit.PasswordBcrypt
	default:
		return authkit.Config{}, fmt.Errorf("config: unknown password algorithm %q", c.PasswordAlgorithm)
	}

	switch strings.ToLower(c.TokenFormat) {
	case "random":
		cfg.Tokens.Format = authkit.TokenRandom
	case "uuid":
		cfg.Tokens.Format = authkit.TokenUUID
	default:
		return authkit.Config{}, fmt.Errorf("config: unknown token format %q", c.TokenFormat)
	}

	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Store.RedisPrefix = c.RedisPrefix

	if err := cfg.Validate(); err != nil {
		return authkit.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// pemBytes accepts PEM blocks whose newlines were flattened to "\n" so they
// fit in a single environment variable.
func pemBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(strings.ReplaceAll(s, `\n`, "\n"))
}
