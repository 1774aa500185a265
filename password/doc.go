// Package password implements password hashing and verification.
//
// # Hashers
//
//   - [Argon2]: Argon2id, the default. Hashes are PHC strings:
//     $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//   - [Bcrypt]: for credential stores that already hold bcrypt hashes.
//
// Both reject passwords shorter than [MinPasswordBytes] and expose
// NeedsUpgrade so callers can re-hash after a successful login. A stored
// Argon2 hash that cannot be decoded yields [ErrMalformedHash].
//
// The package never stores passwords and imports no other authkit package.
package password
