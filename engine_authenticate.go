package authkit

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authkit/jwt"
	"github.com/MrEthical07/authkit/store"
)

// AuthenticateRequest resolves a bearer access token to the calling
// identity. The token must verify, its owner must still exist and be active,
// and the user id and email embedded at issue time must still match the
// stored record. Every such failure is ErrUnauthenticated; only store
// transport errors are returned as themselves.
//
// The returned role is the stored role, not the one in the token.
func (e *Engine) AuthenticateRequest(ctx context.Context, bearer string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := e.now()
	defer func() {
		e.metrics.Observe(MetricAuthenticateLatency, e.now().Sub(start))
	}()

	claims, err := e.jwtManager.ParseAccess(strings.TrimSpace(bearer))
	if err != nil {
		return nil, e.rejectAuthentication(ctx, 0, "invalid_token")
	}

	user, err := e.users.Get(ctx, userKey(claims.UID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, e.rejectAuthentication(ctx, claims.UID, "user_missing")
		}
		return nil, err
	}

	if !jwt.MatchesSubject(claims, user.ID, user.Email) {
		return nil, e.rejectAuthentication(ctx, user.ID, "subject_mismatch")
	}
	if !user.Enabled {
		e.metrics.Inc(MetricAccountDisabled)
		return nil, e.rejectAuthentication(ctx, user.ID, "account_disabled")
	}
	if user.Locked {
		e.metrics.Inc(MetricAccountLocked)
		return nil, e.rejectAuthentication(ctx, user.ID, "account_locked")
	}
	if user.Expired {
		return nil, e.rejectAuthentication(ctx, user.ID, "account_expired")
	}

	e.metrics.Inc(MetricAuthenticateSuccess)
	return &Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		TenantID: tenantIDFromContext(ctx),
		User:     user.View(),
	}, nil
}

func (e *Engine) rejectAuthentication(ctx context.Context, userID int64, reason string) error {
	e.metrics.Inc(MetricAuthenticateFailure)
	e.emitAudit(ctx, auditEventAuthenticationRejected, false, userID, "", ErrUnauthenticated, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrUnauthenticated
}
