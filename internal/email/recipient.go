package email

import (
	"regexp"
	"strings"
)

var (
	spokenAt  = regexp.MustCompile(`(?i)\s+at\s+`)
	spokenDot = regexp.MustCompile(`(?i)\s+dot\s+`)
	addrLike  = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
)

// NormalizeSpoken rewrites a dictated address such as
// "john dot doe at gmail dot com" to "john.doe@gmail.com". Input that
// does not become an address is returned trimmed but otherwise as is.
func NormalizeSpoken(s string) string {
	s = strings.TrimSpace(s)
	if addrLike.MatchString(s) {
		return s
	}

	out := spokenDot.ReplaceAllString(s, ".")
	out = spokenAt.ReplaceAllString(out, "@")
	out = strings.ReplaceAll(out, " ", "")
	if addrLike.MatchString(out) {
		return strings.ToLower(out)
	}
	return s
}

// IsAddress reports whether s looks like a bare e-mail address.
func IsAddress(s string) bool {
	return addrLike.MatchString(s)
}
