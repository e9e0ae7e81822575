package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e******.com")
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	username := email[:at]
	domain := email[at+1:]

	if len(username) > 1 {
		username = username[:1] + strings.Repeat("*", len(username)-1)
	}

	// Keep the TLD only
	parts := strings.Split(domain, ".")
	if len(parts) > 1 {
		for i := 0; i < len(parts)-1; i++ {
			parts[i] = strings.Repeat("*", len(parts[i]))
		}
		domain = strings.Join(parts, ".")
	}

	return username + "@" + domain
}

var sensitiveParams = []string{
	"password", "token", "secret", "code", "email", "auth", "otp",
}

// SanitizeQueryString reports whether a raw query string must be redacted from logs
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
