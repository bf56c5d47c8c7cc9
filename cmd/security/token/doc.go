// Package token holds signing-key policy helpers for the JWT credential layer.
//
// The signing secret is deployment configuration; this package is the single
// place that reads it and enforces the minimum key length.
package token
