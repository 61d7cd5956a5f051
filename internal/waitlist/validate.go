package waitlist

import (
	"regexp"
	"strings"
)

const (
	MinEmailLength = 5
	MaxEmailLength = 254
)

// Local part of letters, digits and . _ + -; domain labels of letters, digits
// and hyphens with an alphabetic TLD of two or more characters.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)

// ValidEmail reports whether raw is an acceptable signup address.
func ValidEmail(raw string) bool {
	if len(raw) < MinEmailLength || len(raw) > MaxEmailLength {
		return false
	}
	return emailPattern.MatchString(raw)
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
