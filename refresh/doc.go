// Package refresh owns the refresh token state machine.
//
// # Lifecycle
//
// Per user the manager moves between {no token} and {active}; every issued
// token ends in {revoked}. Issue revokes every earlier token of the user before
// writing the new one, so a refresh is a rotation rather than a renewal: a
// replayed older token fails on its revoked flag regardless of its expiry.
//
// Tokens are opaque strings. They prove nothing on their own; validity comes
// only from the stored record ([Manager.IsUsable]).
//
// # Architecture boundaries
//
// The package talks to persistence only through [store.Collection]. It does
// not mint access tokens and does not know about users beyond their id.
//
// # What this package must NOT do
//
//   - Import authkit, jwt or any HTTP package.
//   - Wrap multi-record sequences in transactions; revoke-then-insert is
//     ordered but not atomic.
package refresh
