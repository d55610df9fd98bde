// Package token provides refresh-secret primitives for sessiond.
//
// It is the single source of truth for how refresh secrets are generated and
// how they are digested for storage.
//
// Design goals:
// - Refresh secrets are opaque random bytes, handed to the client exactly once.
// - Storage only ever sees a keyed digest (HMAC) plus the algorithm tag used.
// - Verification is constant-time and never panics on malformed input.
//
// Environment:
// - SESSIOND_TOKEN_DIGEST_KEY: HMAC key (>= 32 bytes).
// - SESSIOND_TOKEN_DIGEST_ALG: algorithm identifier (default "hmac-sha256").
package token
