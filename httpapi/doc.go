// Package httpapi exposes authkit.Engine as a JSON REST API built on echo.
//
// All routes live under /api/auth. Public routes cover login, registration,
// refresh, logout and both halves of the password reset flow. /user requires
// a bearer token; /admin/users additionally requires the ADMIN role. Replies
// use one envelope:
//
//	{"success": true, "message": "...", "data": {...}}
//
// Engine errors are mapped to status codes in one place so that clients
// never see internal error text for 5xx responses.
package httpapi
