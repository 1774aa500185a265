// Package reset owns the single-use password reset token state machine.
//
// A token is created, then ends either used (terminal, explicit) or expired
// (terminal, implicit by time). Creating a token for a user deletes every
// earlier token of that user, so at most one live token exists per user.
//
// [Manager.Validate] collapses "absent", "used" and "expired" into one
// [ErrNotFound] so callers cannot tell which check failed.
//
// The manager never delivers tokens. Delivery belongs to the caller.
package reset
