package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns whose values are fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"authorization",
	"bearer",
	"encryption_key",
}

// Keys matching a sensitive pattern that only carry derived, safe values.
var safeKeySuffixes = []string{
	"_fp",
}

// jwtPrefix starts every base64url-encoded JSON JOSE header.
const jwtPrefix = "eyJ"

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive redacts attributes that look like they carry secrets.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		// A JWT is masked wherever it appears.
		if looksLikeJWT(strVal) {
			return slog.String(a.Key, MaskJWT(strVal))
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// looksLikeJWT reports whether s has the shape header.payload.signature
// with a JSON header.
func looksLikeJWT(s string) bool {
	s = strings.TrimPrefix(s, "Bearer ")
	return strings.HasPrefix(s, jwtPrefix) && strings.Count(s, ".") == 2
}

// MaskJWT keeps only the first and last 4 characters of a token.
func MaskJWT(s string) string {
	s = strings.TrimPrefix(s, "Bearer ")
	if len(s) <= 12 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// RedactString manually redacts a string value before logging.
func RedactString(value string) string {
	if looksLikeJWT(value) {
		return MaskJWT(value)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, suffix := range safeKeySuffixes {
		if strings.HasSuffix(keyLower, suffix) {
			return false
		}
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
