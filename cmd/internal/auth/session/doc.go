// Package session implements the token lifecycle subsystem of the catalog API.
//
// Every issued credential is an HS256 JWT backed by a persisted token record.
// A record carries an absolute validity window (issued_at..expires_at), a
// last-activity timestamp driving sliding-window inactivity expiry, and a
// monotonic revoked flag. Refresh is always a full rotation: the presented
// token is revoked and a fresh one issued for the same user; a conditional
// revoke under a row lock guarantees that exactly one of two concurrent
// rotations wins.
//
// Two validity predicates coexist on purpose and must not be merged:
//
//   - IsActive: not revoked AND not idle beyond the inactivity window.
//     Ignores absolute expiry; the request path only reaches it with a token
//     whose signature (and therefore "exp") already verified.
//   - IsValid: not revoked AND absolute expiry not passed. Ignores inactivity.
//     Used by direct API validity checks.
//
// Transport (HTTP) integration lives in the auth/api package.
package session
