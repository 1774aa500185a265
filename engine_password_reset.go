package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/internal/limiters"
	"github.com/MrEthical07/authkit/reset"
	"github.com/MrEthical07/authkit/store"
)

// InitiatePasswordReset creates a reset token for email and hands it to the
// Mailer. It returns nil whether or not the email belongs to an account,
// and also when the request is throttled, so callers cannot probe for
// accounts. Delivery failures are logged, never returned or retried.
func (e *Engine) InitiatePasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled || e.resets == nil {
		return ErrPasswordResetDisabled
	}

	e.metrics.Inc(MetricPasswordResetRequest)
	email = strings.TrimSpace(email)

	if err := e.resetLimiter.CheckRequest(ctx, tenantIDFromContext(ctx), email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrResetRateLimited) {
			e.metrics.Inc(MetricPasswordResetRateLimited)
			e.emitRateLimit(ctx, "password_reset_request", ErrPasswordResetRateLimited)
			return nil
		}
		return err
	}

	user, err := e.userByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, 0, "", nil, func() map[string]string {
			return map[string]string{"delivered": "false"}
		})
		return nil
	}
	if err != nil {
		return err
	}

	token, err := e.resets.CreateToken(ctx, user.ID)
	if err != nil {
		return err
	}
	ref := internal.Fingerprint(token)

	if err := e.mailer.SendResetLink(ctx, user.Email, token); err != nil {
		e.metrics.Inc(MetricPasswordResetMailFailure)
		e.logger.Warn().Err(err).Int64("user_id", user.ID).Str("token_ref", ref).Msg("reset link delivery failed")
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, ref, errMailDelivery, nil)
		return nil
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, ref, nil, func() map[string]string {
		return map[string]string{"delivered": "true"}
	})
	return nil
}

// CompletePasswordReset sets a new password using a reset token. The token
// is marked used only after the new hash is stored, so a failed write leaves
// it usable for another attempt. Any problem with the token itself yields
// ErrInvalidToken.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled || e.resets == nil {
		return ErrPasswordResetDisabled
	}
	if token == "" {
		return e.resetConfirmFailed(ctx, 0, "", ErrInvalidToken)
	}

	ref := internal.Fingerprint(token)

	if err := e.resetLimiter.CheckConfirm(ctx, tenantIDFromContext(ctx), ref, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrResetRateLimited) {
			e.emitRateLimit(ctx, "password_reset_confirm", ErrPasswordResetRateLimited)
			return ErrPasswordResetRateLimited
		}
		return err
	}

	if !e.wellFormed(token) {
		return e.resetConfirmFailed(ctx, 0, ref, ErrInvalidToken)
	}

	rec, err := e.resets.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			return e.resetConfirmFailed(ctx, 0, ref, ErrInvalidToken)
		}
		return err
	}

	user, err := e.users.Get(ctx, userKey(rec.UserID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.resetConfirmFailed(ctx, rec.UserID, ref, ErrInvalidToken)
		}
		return err
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return e.resetConfirmFailed(ctx, user.ID, ref, err)
	}

	user.PasswordHash = hash
	user.CredentialsExpired = false
	user.UpdatedAt = e.now()
	if err := e.users.Put(ctx, user); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	if err := e.resets.MarkUsed(ctx, token); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	if e.config.PasswordReset.RevokeRefreshTokens {
		if _, err := e.refresh.RevokeAll(ctx, user.ID); err != nil {
			e.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("refresh revocation after reset failed")
		}
	}
	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, tenantIDFromContext(ctx), user.Email, ""); err != nil {
			e.logger.Warn().Err(err).Msg("login limiter reset failed")
		}
	}

	e.metrics.Inc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, ref, nil, nil)
	return nil
}

func (e *Engine) resetConfirmFailed(ctx context.Context, userID int64, ref string, err error) error {
	e.metrics.Inc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, ref, err, nil)
	return err
}
