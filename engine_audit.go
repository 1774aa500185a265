package authkit

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/store"
)

const (
	auditEventLogin                  = "login"
	auditEventRegister               = "register"
	auditEventRefresh                = "refresh"
	auditEventRefreshReuse           = "refresh_reuse_detected"
	auditEventLogout                 = "logout"
	auditEventTokensRevoked          = "tokens_revoked"
	auditEventTokensPurged           = "tokens_purged"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetConfirm   = "password_reset_confirm"
	auditEventProfileUpdated         = "profile_updated"
	auditEventAccountStatus          = "account_status_changed"
	auditEventRateLimited            = "rate_limited"
	auditEventAuthenticationRejected = "authentication_rejected"
)

// AuditErrorCode is the stable, low-cardinality error label carried by
// audit events.
type AuditErrorCode string

const (
	auditErrBadCredentials AuditErrorCode = "bad_credentials"
	auditErrAlreadyExists  AuditErrorCode = "already_exists"
	auditErrInvalidToken   AuditErrorCode = "invalid_token"
	auditErrUnauthorized   AuditErrorCode = "unauthenticated"
	auditErrNotFound       AuditErrorCode = "not_found"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrPasswordPolicy AuditErrorCode = "password_policy"
	auditErrStoreFailure   AuditErrorCode = "store_unavailable"
	auditErrMailFailure    AuditErrorCode = "mail_delivery_failed"
	auditErrInternal       AuditErrorCode = "internal_error"
)

var errMailDelivery = errors.New("mail delivery failed")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	tokenRef string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		TenantID:  tenantIDFromContext(ctx),
		TokenRef:  tokenRef,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     string(auditErrorCode(err)),
		Metadata:  metadata,
	}
	if userID > 0 {
		event.UserID = strconv.FormatInt(userID, 10)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, err error) {
	e.emitAudit(ctx, auditEventRateLimited, false, 0, "", err, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBadCredentials):
		return auditErrBadCredentials
	case errors.Is(err, ErrAlreadyExists):
		return auditErrAlreadyExists
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrForbidden):
		return auditErrUnauthorized
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrRegisterRateLimited),
		errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, store.ErrUnavailable):
		return auditErrStoreFailure
	case errors.Is(err, errMailDelivery):
		return auditErrMailFailure
	default:
		return auditErrInternal
	}
}
