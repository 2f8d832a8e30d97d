// Package password hashes and verifies user credentials for partsbin.
//
// Two algorithms are supported:
// - bcrypt (default, cost 10)
// - Argon2id using a PHC-like encoded string format
//
// Verify dispatches on the encoded hash prefix, so stored hashes keep verifying
// after the configured algorithm changes. NeedsRehash reports when a stored hash
// should be upgraded on the next successful login.
//
// Security notes:
// - Hash strings are treated as untrusted input during Verify.
// - Argon2id verification refuses parameters that exceed reasonable bounds.
package password
