// Package jwt mints and verifies the short-lived access tokens handed out by
// authkit. Tokens carry the subject's user id, email and role, and are signed
// with a process-wide key fixed at construction.
//
// Verification failures collapse into a single [ErrInvalidToken] so callers
// cannot be used as an oracle for which check failed.
package jwt
