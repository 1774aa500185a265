// Package authkit is the token lifecycle and authentication decision engine
// of an auth service: short-lived JWT access tokens, rotating opaque refresh
// tokens, single-use password reset tokens, and the checks that turn a
// bearer token into an [Identity].
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface: [Engine], [Builder], [Config] and value
// types. Token codecs live in jwt, refresh and reset; persistence lives
// behind store.Collection; rate limiting and audit dispatch live under
// internal/. Transport adapters (httpapi, natsapi, middleware) depend on
// this package, never the other way round.
//
// # Failure reporting
//
// Login collapses unknown email, wrong password and inactive account into
// [ErrBadCredentials]. AuthenticateRequest reports every token or identity
// problem as [ErrUnauthenticated]. Password reset initiation never reveals
// whether an email is registered. Store transport failures are returned
// wrapped and are never reinterpreted as authentication outcomes.
package authkit
