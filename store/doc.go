// Package store provides the credential store adapter used by authkit: typed
// collections of records addressed by a primary key and by secondary indexes.
//
// # Backends
//
//   - [RedisCollection] keeps JSON documents and index sets in Redis.
//   - [PostgresCollection] keeps JSONB documents and index rows in PostgreSQL.
//
// Every call is atomic for the single record it touches, index entries included.
// There are no transactions spanning calls; callers that need multi-record
// sequences must tolerate interleaving.
//
// # What this package must NOT do
//
//   - Import authkit or interpret record contents beyond the [Schema] callbacks.
//   - Retry transport failures; they surface wrapped in [ErrUnavailable].
package store
