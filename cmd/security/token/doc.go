// Package token holds the token primitives used by partsbin authentication.
//
// It covers three concerns:
// - Signed tokens: a Codec signs and verifies access/refresh claims
//   (JWT HS256 by default, PASETO v4.public as an alternative).
// - Opaque session tokens: NewSessionToken generates unguessable bearer values.
// - Token digests: a Hasher turns opaque tokens into the 64-char hex digest
//   that is persisted (SHA-256, or HMAC-SHA256 when a key is configured).
//
// Environment:
// - PARTSBIN_TOKEN_HMAC_KEY: when set, enables HMAC digests.
// Policy:
//   - If RequireTokenHMAC=true, callers MUST enforce a minimum key size (>= 32 bytes)
//     and MUST use HMAC (no SHA fallback).
package token
