// Package session implements partsbin's durable login sessions.
//
// A session is a row keyed by an opaque bearer token. Only the token digest
// is persisted (HMAC-SHA256 when PARTSBIN_TOKEN_HMAC_KEY is set; otherwise
// SHA-256). Token uniqueness is arbitrated by the database: Create retries
// with a fresh token when the insert hits the unique constraint, up to a
// fixed number of attempts.
//
// Every Service method receives the Store to run on, so callers decide
// whether an operation joins a transaction or runs on the pool.
package session
