package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/rs/zerolog"
)

// Engine makes every authentication decision: it issues and rotates tokens,
// runs the password reset flow and resolves bearer tokens to identities.
//
// An Engine holds immutable configuration and thread-safe collaborators; all
// methods may be called concurrently once [Builder.Build] returns.
type Engine struct {
	config         Config
	users          store.Collection[User]
	refresh        *refresh.Manager
	resets         *reset.Manager
	jwtManager     *jwt.Manager
	hasher         Hasher
	mailer         Mailer
	rateLimiter    *rate.Limiter
	accountLimiter *limiters.AccountCreationLimiter
	resetLimiter   *limiters.PasswordResetLimiter
	audit          *audit.Dispatcher
	metrics        *Metrics
	logger         zerolog.Logger
	clock          func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Login exchanges an email and password for a session. An unknown email, a
// wrong password and an inactive account all yield ErrBadCredentials.
// Issuing the session revokes every earlier refresh token of the user.
func (e *Engine) Login(ctx context.Context, email, plain string) (*Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	tenantID := tenantIDFromContext(ctx)
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, tenantID, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metrics.Inc(MetricLoginRateLimited)
				e.emitRateLimit(ctx, "login", ErrLoginRateLimited)
				return nil, ErrLoginRateLimited
			}
			return nil, err
		}
	}

	user, err := e.userByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err != nil || !e.passwordMatches(plain, user) || !user.Active() {
		e.loginFailed(ctx, tenantID, email, ip, user.ID)
		return nil, ErrBadCredentials
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, tenantID, email, ip); err != nil {
			e.logger.Warn().Err(err).Msg("login limiter reset failed")
		}
	}
	e.upgradeHash(ctx, plain, user)

	sess, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, user.ID, "", nil, nil)
	return sess, nil
}

func (e *Engine) passwordMatches(plain string, user User) bool {
	if user.PasswordHash == "" {
		return false
	}
	ok, err := e.hasher.Verify(plain, user.PasswordHash)
	if err != nil {
		e.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("stored password hash rejected")
		return false
	}
	return ok
}

func (e *Engine) loginFailed(ctx context.Context, tenantID, email, ip string, userID int64) {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, tenantID, email, ip); err != nil {
			e.logger.Warn().Err(err).Msg("login limiter increment failed")
		}
	}
	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLogin, false, userID, "", ErrBadCredentials, nil)
}

// upgradeHash re-hashes plain when the stored hash uses weaker parameters
// than the current hasher. Failures leave the old hash in place.
func (e *Engine) upgradeHash(ctx context.Context, plain string, user User) {
	up, ok := e.hasher.(interface {
		NeedsUpgrade(hash string) (bool, error)
	})
	if !ok {
		return
	}
	if needs, err := up.NeedsUpgrade(user.PasswordHash); err != nil || !needs {
		return
	}

	hash, err := e.hasher.Hash(plain)
	if err != nil {
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = e.now()
	if err := e.users.Put(ctx, user); err != nil {
		e.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("password hash upgrade failed")
	}
}

// Register creates an account and signs it in. An empty role means the
// configured default role.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.RegistrationEnabled {
		return nil, ErrRegistrationDisabled
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = e.config.Account.DefaultRole
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := e.accountLimiter.Enforce(ctx, tenantIDFromContext(ctx), in.Email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrAccountRateLimited) {
			e.metrics.Inc(MetricRegisterRateLimited)
			e.emitRateLimit(ctx, "register", ErrRegisterRateLimited)
			return nil, ErrRegisterRateLimited
		}
		return nil, err
	}

	if _, err := e.userByEmail(ctx, in.Email); err == nil {
		return nil, e.registerDuplicate(ctx)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := e.hashPassword(in.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegister, false, 0, "", err, nil)
		return nil, err
	}

	id, err := e.users.NextID(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := User{
		ID:           id,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Put(ctx, user); err != nil {
		// The unique email index closes the race between the lookup above
		// and this write.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, e.registerDuplicate(ctx)
		}
		return nil, err
	}

	sess, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})
	return sess, nil
}

func (e *Engine) registerDuplicate(ctx context.Context) error {
	e.metrics.Inc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegister, false, 0, "", ErrAlreadyExists, nil)
	return ErrAlreadyExists
}

func (e *Engine) hashPassword(plain string) (string, error) {
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return "", err
	}
	return hash, nil
}

// Refresh rotates a refresh token. The presented token stops being usable
// and a new access and refresh token pair is returned. Presenting a token
// that was already rotated fails with ErrInvalidToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.refreshFailed(ctx, 0, "", ErrInvalidToken)
		return nil, ErrInvalidToken
	}

	ref := internal.Fingerprint(refreshToken)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, tenantIDFromContext(ctx), refreshToken); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metrics.Inc(MetricRefreshRateLimited)
				e.emitRateLimit(ctx, "refresh", ErrRefreshRateLimited)
				return nil, ErrRefreshRateLimited
			}
			return nil, err
		}
	}

	if !e.wellFormed(refreshToken) {
		e.refreshFailed(ctx, 0, ref, ErrInvalidToken)
		return nil, ErrInvalidToken
	}

	tok, found, err := e.refresh.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !found {
		e.refreshFailed(ctx, 0, ref, ErrInvalidToken)
		return nil, ErrInvalidToken
	}
	if !e.refresh.IsUsable(tok) {
		if tok.Revoked {
			e.metrics.Inc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, auditEventRefreshReuse, false, tok.UserID, ref, ErrInvalidToken, nil)
		}
		e.refreshFailed(ctx, tok.UserID, ref, ErrInvalidToken)
		return nil, ErrInvalidToken
	}

	user, err := e.users.Get(ctx, userKey(tok.UserID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		e.refreshFailed(ctx, tok.UserID, ref, ErrInvalidToken)
		return nil, ErrInvalidToken
	}
	if !user.Active() {
		e.refreshFailed(ctx, user.ID, ref, ErrInvalidToken)
		return nil, ErrInvalidToken
	}

	sess, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, user.ID, ref, nil, nil)
	return sess, nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID int64, ref string, err error) {
	e.metrics.Inc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefresh, false, userID, ref, err, nil)
}

// Logout revokes one refresh token. Unknown and already revoked tokens are
// accepted silently. Access tokens stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil
	}

	if e.wellFormed(refreshToken) {
		if err := e.refresh.RevokeByToken(ctx, refreshToken); err != nil {
			return err
		}
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, 0, internal.Fingerprint(refreshToken), nil, nil)
	return nil
}

// issueSession mints an access token and rotates the refresh token of user.
func (e *Engine) issueSession(ctx context.Context, user User) (*Session, error) {
	access, err := e.jwtManager.CreateAccess(jwt.Subject{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	if err != nil {
		return nil, err
	}

	rt, err := e.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: rt.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.jwtManager.TTL() / time.Second),
		User:         user.View(),
	}, nil
}

func (e *Engine) userByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrNotFound
	}

	users, err := e.users.FindByIndex(ctx, IndexEmail, email)
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}

// wellFormed reports whether token has the shape of the configured opaque
// format. Anything else cannot be in the store.
func (e *Engine) wellFormed(token string) bool {
	return internal.WellFormedOpaque(opaqueFormat(e.config.Tokens.Format), token)
}

func (e *Engine) ready() bool {
	return e != nil && e.users != nil && e.refresh != nil && e.jwtManager != nil && e.hasher != nil
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
