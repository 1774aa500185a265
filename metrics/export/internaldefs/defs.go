package internaldefs

import (
	"github.com/MrEthical07/authkit"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for discarded audit events.
const AuditDroppedName = "authkit_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful logins."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Logins rejected with bad credentials."},
	{ID: authkit.MetricLoginRateLimited, Name: "authkit_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: authkit.MetricRegisterSuccess, Name: "authkit_register_success_total", Help: "Accounts created."},
	{ID: authkit.MetricRegisterDuplicate, Name: "authkit_register_duplicate_total", Help: "Registrations rejected because the email exists."},
	{ID: authkit.MetricRegisterRateLimited, Name: "authkit_register_rate_limited_total", Help: "Registrations rejected by the rate limiter."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Refresh token rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Refresh attempts with an unusable token."},
	{ID: authkit.MetricRefreshReuseDetected, Name: "authkit_refresh_reuse_detected_total", Help: "Refresh attempts with a revoked token."},
	{ID: authkit.MetricRefreshRateLimited, Name: "authkit_refresh_rate_limited_total", Help: "Refresh attempts rejected by the rate limiter."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Logout calls."},
	{ID: authkit.MetricTokensRevoked, Name: "authkit_tokens_revoked_total", Help: "Administrative revoke-all operations."},
	{ID: authkit.MetricPasswordResetRequest, Name: "authkit_password_reset_request_total", Help: "Password reset requests."},
	{ID: authkit.MetricPasswordResetRateLimited, Name: "authkit_password_reset_rate_limited_total", Help: "Password reset requests absorbed by the rate limiter."},
	{ID: authkit.MetricPasswordResetMailFailure, Name: "authkit_password_reset_mail_failure_total", Help: "Reset links that could not be delivered."},
	{ID: authkit.MetricPasswordResetConfirmSuccess, Name: "authkit_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: authkit.MetricPasswordResetConfirmFailure, Name: "authkit_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: authkit.MetricAuthenticateSuccess, Name: "authkit_authenticate_success_total", Help: "Bearer tokens resolved to an identity."},
	{ID: authkit.MetricAuthenticateFailure, Name: "authkit_authenticate_failure_total", Help: "Bearer tokens rejected."},
	{ID: authkit.MetricAccountDisabled, Name: "authkit_account_disabled_total", Help: "Disable operations and requests from disabled accounts."},
	{ID: authkit.MetricAccountLocked, Name: "authkit_account_locked_total", Help: "Lock operations and requests from locked accounts."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricAuthenticateLatency, Name: "authkit_authenticate_latency_seconds", Help: "AuthenticateRequest latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's eight
// latency buckets.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, n := range raw {
		running += n
		out[i] = running
	}
	return out
}
