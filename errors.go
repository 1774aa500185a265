package authkit

import "errors"

var (
	// ErrBadCredentials is returned by Login for an unknown email, a wrong
	// password and an inactive account alike.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrAlreadyExists is returned when an email is already registered.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInvalidToken covers absent, expired, revoked and already used refresh
	// or reset tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound is returned where disclosing absence is safe.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is the only failure AuthenticateRequest reports.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when an authenticated identity lacks the role
	// required for an operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for structurally invalid arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidRole is returned for roles other than USER and ADMIN.
	ErrInvalidRole = errors.New("invalid role")
	// ErrPasswordPolicy is returned when a new password is rejected by the hasher.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRegistrationDisabled is returned by Register when sign-up is turned off.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrPasswordResetDisabled is returned by the reset flows when turned off.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrLoginRateLimited is returned when the login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when a refresh token is hammered.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRegisterRateLimited is returned when the registration budget is exhausted.
	ErrRegisterRateLimited = errors.New("registration rate limited")
	// ErrPasswordResetRateLimited is returned when reset confirmation is throttled.
	ErrPasswordResetRateLimited = errors.New("password reset rate limited")
	// ErrEngineNotReady is returned when a nil or partially built Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)
