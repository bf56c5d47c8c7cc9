package identity

import "strings"

// NormalizeUsername produces the canonical form used for uniqueness checks:
// surrounding whitespace dropped, then lower-cased. Folding of look-alike
// characters is deliberately left out of this form.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail canonicalizes an address the same way. RFC 5321 allows a
// case-sensitive local part, but treating the whole address as insensitive
// matches how providers actually behave.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
