// Package identity holds partsbin's user records and their persistence.
//
// It defines the User principal, the Store boundary used by the auth service,
// and two Store implementations: PostgreSQL (pgx) and a gorm-backed store used
// with SQLite in development and tests. Stores run either on a pool or inside
// a caller-owned transaction.
package identity
