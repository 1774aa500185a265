package authkit

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/authkit/store"
)

// CurrentUser returns the public view of a user.
func (e *Engine) CurrentUser(ctx context.Context, userID int64) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := user.View()
	return &view, nil
}

// UpdateProfile applies the non-nil fields of upd. Changing the email makes
// every outstanding access token of the user fail authentication, since the
// token no longer matches the stored record.
func (e *Engine) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := map[string]string{}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
		changed["first_name"] = "true"
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
		changed["last_name"] = "true"
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" {
			return nil, ErrInvalidInput
		}
		if email != user.Email {
			if _, err := e.userByEmail(ctx, email); err == nil {
				return nil, ErrAlreadyExists
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			user.Email = email
			changed["email"] = "true"
		}
	}

	user.UpdatedAt = e.now()
	if err := e.users.Put(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	e.emitAudit(ctx, auditEventProfileUpdated, true, user.ID, "", nil, func() map[string]string {
		return changed
	})
	view := user.View()
	return &view, nil
}

// RevokeAllTokens revokes every refresh token of a user and returns how many
// were revoked.
func (e *Engine) RevokeAllTokens(ctx context.Context, userID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	n, err := e.refresh.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	e.metrics.Inc(MetricTokensRevoked)
	e.emitAudit(ctx, auditEventTokensRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(n)}
	})
	return n, nil
}

// PurgeTokens deletes every refresh token record of a user.
func (e *Engine) PurgeTokens(ctx context.Context, userID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	n, err := e.refresh.PurgeAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	e.emitAudit(ctx, auditEventTokensPurged, true, userID, "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(n)}
	})
	return n, nil
}

// SetAccountStatus enables, disables, locks or unlocks an account.
// Disabling or locking also revokes every refresh token, and
// AuthenticateRequest starts rejecting the user's access tokens at once.
func (e *Engine) SetAccountStatus(ctx context.Context, userID int64, status AccountStatus) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Enabled = status.Enabled
	user.Locked = status.Locked
	user.UpdatedAt = e.now()
	if err := e.users.Put(ctx, user); err != nil {
		return nil, err
	}

	if !status.Enabled || status.Locked {
		if _, err := e.refresh.RevokeAll(ctx, userID); err != nil {
			return nil, err
		}
		if !status.Enabled {
			e.metrics.Inc(MetricAccountDisabled)
		}
		if status.Locked {
			e.metrics.Inc(MetricAccountLocked)
		}
	}

	e.emitAudit(ctx, auditEventAccountStatus, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"enabled": strconv.FormatBool(status.Enabled),
			"locked":  strconv.FormatBool(status.Locked),
		}
	})
	view := user.View()
	return &view, nil
}

func (e *Engine) getUser(ctx context.Context, userID int64) (User, error) {
	user, err := e.users.Get(ctx, userKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrNotFound
	}
	return user, err
}
