// Package validation provides the RFC 6749 appendix A character class checks
// used to validate protocol parameters before they reach storage.
package validation

import "net/url"

// VSChar reports whether s is a non-empty string of visible ASCII characters
// plus space (VSCHAR, %x20-7E). Client identifiers, tokens, codes and the
// state parameter use this set.
func VSChar(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

// NQSChar reports whether s is a non-empty string of characters safe inside a
// double-quoted string (NQSCHAR): VSCHAR minus double quote and backslash.
// This is the character set for scope values.
func NQSChar(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return false
		}
	}
	return true
}

// NChar reports whether s is a non-empty name string: ASCII letters, digits,
// hyphen, dot and underscore. Grant type names use this set.
func NChar(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '.' || r == '_':
		default:
			return false
		}
	}
	return true
}

// UChar reports whether s is a non-empty string of UNICODECHARNOCRLF
// characters: horizontal tab, visible ASCII plus space, and any character at
// or above %x80. Usernames and passwords use this set.
func UChar(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '\t' || (r >= 0x20 && r <= 0x7e) || r >= 0x80 {
			continue
		}
		return false
	}
	return true
}

// URI reports whether s parses as an absolute URI with a scheme and host.
// Redirect URIs must pass this check before they participate in redirect
// construction.
func URI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
