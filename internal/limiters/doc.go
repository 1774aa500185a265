// Package limiters holds the registration and password reset throttles.
//
//   - [AccountCreationLimiter] counts sign-ups per email and per IP.
//   - [PasswordResetLimiter] counts reset requests per email, confirmations
//     per token fingerprint, and both per IP.
//
// Both are built on the fixed windows of internal/rate and report Redis
// failures wrapped in rate.ErrRedisUnavailable. Nil limiters allow
// everything. Callers decide what a limit means: the engine answers a
// throttled reset request with success to avoid disclosing accounts.
package limiters
