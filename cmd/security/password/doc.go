// Package password implements the one-way credential hashing collaborator
// (Argon2id, PHC-encoded) used by the identity layer.
package password
