package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps for logged values
const (
	MaxPathLength          = 500
	MaxEmailLength         = 254
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizeString drops invalid UTF-8 and control characters (tab, newline and
// carriage return survive) and truncates s to maxLength bytes on a rune
// boundary. A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)

	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SanitizePath prepares a request path for logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError prepares err's message for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeEmail masks the local part of an email address: ann@x.com becomes a***@x.com
func SanitizeEmail(email string) string {
	email = SanitizeString(email, MaxEmailLength)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
