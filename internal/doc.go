// Package internal holds helpers private to authkit: opaque token
// generation for refresh and reset credentials, and the token fingerprints
// used wherever a token must be referenced without being stored.
//
// # Sub-packages
//
//   - app: server process wiring
//   - audit: asynchronous event dispatch and sinks
//   - config: process configuration loaded from the environment
//   - limiters: registration and password reset throttles
//   - logging: zerolog construction for binaries
//   - rate: Redis fixed windows for login and refresh
package internal
