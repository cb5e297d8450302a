package sql

import (
	"errors"
	"testing"
)

func TestValidateAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"simple select", "SELECT 1", "SELECT 1", nil},
		{"trailing semicolon and whitespace", "  SELECT 1;  ", "SELECT 1", nil},
		{"semicolon inside single quotes", "SELECT * FROM users WHERE name = 'test;test';", "SELECT * FROM users WHERE name = 'test;test'", nil},
		{"semicolon inside double quoted identifier", `SELECT * FROM "table;name"`, `SELECT * FROM "table;name"`, nil},
		{"semicolon inside backticks", "SELECT * FROM `a;b`", "SELECT * FROM `a;b`", nil},
		{"semicolon inside brackets", "SELECT * FROM [a;b]", "SELECT * FROM [a;b]", nil},
		{"semicolon inside line comment", "SELECT 1 -- done; really\nFROM t", "SELECT 1 -- done; really\nFROM t", nil},
		{"trailing line comment dropped", "SELECT 1 -- done; really\n", "SELECT 1", nil},
		{"comment after semicolon", "SELECT id FROM campaigns; -- done", "SELECT id FROM campaigns", nil},
		{"comment before semicolon", "SELECT id FROM campaigns /* all */ ;", "SELECT id FROM campaigns", nil},
		{"semicolon inside block comment", "SELECT /* a;b */ 1", "SELECT /* a;b */ 1", nil},
		{"doubled quote escape", "SELECT 'O''Brien;'", "SELECT 'O''Brien;'", nil},
		{"backslash escaped quote", `SELECT 'it\'s'`, `SELECT 'it\'s'`, nil},
		{"backslash quote read as two statements", `SELECT 'test\';more'`, "", ErrMultipleStatements},
		{"backslash hides statement from mysql", `SELECT 'it\'s'; DROP TABLE t; -- '`, "", ErrMultipleStatements},
		{"empty", "   ", "", nil},
		{"two statements", "SELECT 1; SELECT 2", "", ErrMultipleStatements},
		{"drop after select", "SELECT 1; DROP TABLE users;", "", ErrMultipleStatements},
		{"only one trailing semicolon stripped", "SELECT 1;;", "", ErrMultipleStatements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.input)
			if !errors.Is(result.Error, tt.err) {
				t.Fatalf("expected error %v, got %v", tt.err, result.Error)
			}
			if result.NormalizedSQL != tt.expected {
				t.Errorf("got %q, want %q", result.NormalizedSQL, tt.expected)
			}
		})
	}
}

func TestValidateReadOnly(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"select", "SELECT name, SUM(spend) FROM campaigns GROUP BY name;", nil},
		{"lowercase select", "select * from campaigns", nil},
		{"cte", "WITH top AS (SELECT * FROM campaigns) SELECT * FROM top", nil},
		{"values", "VALUES (1), (2)", nil},
		{"leading comment", "-- monthly spend\nSELECT 1", nil},
		{"keyword inside string", "SELECT * FROM logs WHERE message = 'DELETE FROM users'", nil},
		{"keyword inside quoted identifier", `SELECT "update" FROM audit`, nil},
		{"replace function", "SELECT REPLACE(name, 'a', 'b') FROM campaigns", nil},
		{"column containing keyword", "SELECT created_at, updated_by FROM campaigns", nil},
		{"empty", "", ErrEmptyStatement},
		{"comment only", "/* nothing */", ErrEmptyStatement},
		{"insert", "INSERT INTO users (name) VALUES ('x')", ErrNotReadOnly},
		{"update", "UPDATE users SET name = 'x'", ErrNotReadOnly},
		{"drop", "DROP TABLE users", ErrNotReadOnly},
		{"pragma", "PRAGMA table_info(users)", ErrNotReadOnly},
		{"writable cte", "WITH gone AS (DELETE FROM users RETURNING *) SELECT * FROM gone", ErrNotReadOnly},
		{"select into", "SELECT * INTO backup FROM users", ErrNotReadOnly},
		{"row lock", "SELECT * FROM users FOR UPDATE", ErrNotReadOnly},
		{"stacked", "SELECT 1; DELETE FROM users", ErrMultipleStatements},
		{"into after block comment", "SELECT a/**/INTO newtbl FROM t", ErrNotReadOnly},
		{"into after line comment", "SELECT 1 FROM t--c\nINTO x", ErrNotReadOnly},
		{"into after literal", "SELECT 'x'INTO y", ErrNotReadOnly},
		{"backslash does not escape in standard sql", `SELECT 'a\' ; DROP TABLE t; --'`, ErrMultipleStatements},
		{"trailing comment", "SELECT id, name FROM campaigns -- all campaigns", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateReadOnly(tt.input)
			if !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	got := keywords("select a.id, 'x y' from t1 -- tail\nwhere b_2 = 1", false)
	want := []string{"SELECT", "A", "ID", "FROM", "T1", "WHERE", "B_2", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestKeywords_SplitAtCommentsAndLiterals(t *testing.T) {
	for _, backslash := range []bool{false, true} {
		got := keywords("SELECT a/**/b, c--x\nd, 'lit'e", backslash)
		want := []string{"SELECT", "A", "B", "C", "D", "E"}
		if len(got) != len(want) {
			t.Fatalf("backslash=%v: got %v, want %v", backslash, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("backslash=%v: got %v, want %v", backslash, got, want)
			}
		}
	}
}
