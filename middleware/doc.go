// Package middleware adapts authkit.Engine to net/http.
//
// [Guard] reads the Authorization header, calls Engine.AuthenticateRequest and
// places the resulting *authkit.Identity in the request context, where
// [IdentityFromContext] finds it. [RequireRole] layers a coarse role check
// on top.
//
// Rejections are written as the JSON envelope used by package httpapi:
//
//	{"success":false,"message":"Unauthorized"}
//
// A store failure during authentication is answered with 500 instead.
//
// The client address handed to the engine's throttles comes from
// [DirectIP] unless [WithIPExtractor] supplies a proxy-aware extractor.
//
// The package makes no authentication decisions of its own.
package middleware
