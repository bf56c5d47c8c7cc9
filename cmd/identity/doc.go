// Package identity implements the user (principal) foundation of the catalog API.
//
// It contains the user model, normalization rules, password-hash wrappers,
// and the Postgres-backed user store consumed by the HTTP and session layers.
package identity
