package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a filter value that libinjection flagged.
type InjectionCheckResult struct {
	Field       string // Name of the filter that failed the check
	Value       string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckFilterValue reports whether a free-text filter value looks like a
// SQL injection payload. Returns nil for clean or empty values.
//
//	CheckFilterValue("search", "sales")                   // nil
//	CheckFilterValue("search", "'; DROP TABLE users--")   // Fingerprint "s&1c" or similar
func CheckFilterValue(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckFilters checks every filter value and returns the ones flagged.
func CheckFilters(filters map[string]string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for field, value := range filters {
		if result := CheckFilterValue(field, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
