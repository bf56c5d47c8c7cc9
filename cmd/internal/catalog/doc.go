// Package catalog holds the product and category domain: types, validation
// services, and the Postgres-backed stores. The HTTP surface lives in the
// api subpackage.
package catalog
