package sql

import (
	"testing"
)

func TestCheckFilterValue(t *testing.T) {
	tests := []struct {
		name            string
		value           string
		expectInjection bool
	}{
		{"empty", "", false},
		{"plain word", "marketing", false},
		{"name with spaces", "Sales Warehouse EU", false},
		{"apostrophe in name", "O'Brien", false},
		{"date", "2024-01-15", false},
		{"email", "ops@example.com", false},
		{"union select", "' UNION SELECT password FROM users--", true},
		{"tautology", "' OR '1'='1", true},
		{"stacked drop", "'; DROP TABLE users--", true},
		{"comment bypass", "admin'--", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckFilterValue("search", tt.value)
			if tt.expectInjection {
				if result == nil {
					t.Fatalf("expected %q to be flagged", tt.value)
				}
				if result.Field != "search" || result.Fingerprint == "" {
					t.Errorf("unexpected result: %+v", result)
				}
				return
			}
			if result != nil {
				t.Errorf("expected %q to be clean, got fingerprint %q", tt.value, result.Fingerprint)
			}
		})
	}
}

func TestCheckFilters(t *testing.T) {
	results := CheckFilters(map[string]string{
		"search": "1' AND '1'='1",
		"status": "connected",
		"type":   "",
	})
	if len(results) != 1 {
		t.Fatalf("expected 1 flagged filter, got %d", len(results))
	}
	if results[0].Field != "search" {
		t.Errorf("expected search to be flagged, got %s", results[0].Field)
	}
}
