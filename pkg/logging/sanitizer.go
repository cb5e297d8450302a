package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxSQLLogLength bounds how much of a SQL statement reaches the logs.
	MaxSQLLogLength = 200
	// RedactedText replaces sensitive values.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.~+/]+=*`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-api-key|token)=[A-Za-z0-9\-_]{8,}`)

	// Provider keys that show up in LLM client errors.
	providerKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9\-_]{8,}`)

	// user:pass@host in URLs and DSNs
	userInfoPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)
)

// secretKeys are connection-detail keys whose values are never logged.
var secretKeys = map[string]struct{}{
	"password":  {},
	"authtoken": {},
	"apikey":    {},
	"token":     {},
	"secret":    {},
}

func redact(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = providerKeyPattern.ReplaceAllString(s, RedactedText)
	return userInfoPattern.ReplaceAllString(s, "://"+RedactedText+"@")
}

// SanitizeConnectionString removes credentials from a DSN or URL.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redact(connStr)
}

// SanitizeError returns the error text with credentials, bearer tokens
// and API keys removed. Use it for any error from a connector or the LLM client.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redact(err.Error())
}

// SanitizeConnectionDetails returns a copy of details with secret values
// replaced. Nested header maps are sanitized too.
func SanitizeConnectionDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if _, secret := secretKeys[strings.ToLower(k)]; secret {
			out[k] = RedactedText
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			out[k] = SanitizeConnectionDetails(val)
		case string:
			out[k] = redact(val)
		default:
			out[k] = v
		}
	}
	return out
}

// SanitizeSQL truncates a statement for logging and strips inline secrets.
func SanitizeSQL(query string) string {
	if query == "" {
		return ""
	}
	return redact(TruncateString(query, MaxSQLLogLength))
}

// TruncateString truncates s to maxLen bytes and adds an ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
